package bridge

import (
	"net/url"

	"github.com/fyrsmithlabs/boxd/internal/dom"
)

// DOMService is the service name the bridge resolves elements through.
const DOMService = "dom"

// idSigil prefixes a module id to form its element selector.
const idSigil = "#"

// Coordinator is the application side of the bridge.
type Coordinator interface {
	Broadcast(name string, data any)
	GetService(name string) any
	GetModuleConfig(element *dom.Element, key Key) (Result, error)
	GetGlobalConfig(key Key) Result
	Navigate(target *url.URL, state, params map[string]any) error
}

// ElementQuerier is the capability the "dom" service must provide.
type ElementQuerier interface {
	Query(selector string) *dom.Element
}

// Bridge is everything a module instance may ask of the application.
type Bridge interface {
	// Broadcast sends a message to every interested listener.
	Broadcast(name string, data any)

	// GetService returns a registered service, or nil.
	GetService(name string) any

	// GetConfig returns configuration rendered for this module instance.
	GetConfig(key Key) (Result, error)

	// GetGlobalConfig returns application-wide configuration.
	GetGlobalConfig(key Key) Result

	// GetElement returns the element backing this module instance, or nil.
	GetElement() *dom.Element

	// Navigate changes the current location. A nil target means the new
	// location state was already arranged elsewhere.
	Navigate(target *url.URL, state, params map[string]any) error
}

// Context is the Bridge handed to a single module instance.
type Context struct {
	app        Coordinator
	moduleName string
	moduleID   string
}

var _ Bridge = (*Context)(nil)

// New creates the bridge for one module instance. It does not check that
// the module or its element exist.
func New(app Coordinator, moduleName, moduleID string) *Context {
	return &Context{
		app:        app,
		moduleName: moduleName,
		moduleID:   moduleID,
	}
}

func (c *Context) Broadcast(name string, data any) {
	c.app.Broadcast(name, data)
}

func (c *Context) GetService(name string) any {
	return c.app.GetService(name)
}

func (c *Context) GetConfig(key Key) (Result, error) {
	return c.app.GetModuleConfig(c.GetElement(), key)
}

func (c *Context) GetGlobalConfig(key Key) Result {
	return c.app.GetGlobalConfig(key)
}

// GetElement queries the dom service for "#<module id>" on every call.
func (c *Context) GetElement() *dom.Element {
	q, ok := c.GetService(DOMService).(ElementQuerier)
	if !ok {
		return nil
	}
	return q.Query(idSigil + c.moduleID)
}

func (c *Context) Navigate(target *url.URL, state, params map[string]any) error {
	return c.app.Navigate(target, state, params)
}
