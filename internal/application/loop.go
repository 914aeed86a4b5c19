package application

import (
	"context"
	"errors"
	"fmt"
)

// ErrStopped is returned by Do once Run has returned.
var ErrStopped = errors.New("application loop stopped")

type call struct {
	fn   func() error
	done chan error
}

// Run executes submitted work one call at a time until ctx is done.
// Modules only ever see a single caller: HTTP requests, relayed
// messages and config reloads all enter through Do.
func (a *Application) Run(ctx context.Context) error {
	a.mu.Lock()
	select {
	case <-a.stopped:
		a.mu.Unlock()
		return ErrStopped
	default:
	}
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application loop already running")
	}
	a.running = true
	a.mu.Unlock()

	// The loop runs once per Application.
	defer close(a.stopped)

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-a.calls:
			c.done <- a.invoke(c.fn)
		}
	}
}

// invoke runs fn, turning a panic into an error so one bad request cannot
// end the loop.
func (a *Application) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in application call: %v", r)
		}
	}()
	return fn()
}

// Do runs fn on the application loop and returns its error.
func (a *Application) Do(ctx context.Context, fn func() error) error {
	c := call{fn: fn, done: make(chan error, 1)}

	select {
	case a.calls <- c:
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
