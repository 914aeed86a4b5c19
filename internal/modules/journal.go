package modules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/bridge"
	"github.com/fyrsmithlabs/boxd/internal/logging"
)

// JournalName is the data-module value for the journal.
const JournalName = "journal"

const defaultJournalLimit = 50

var defaultJournalMessages = []string{ReadyMessage, application.NavigateMessage, application.ErrorMessage}

// Entry is one recorded message.
type Entry struct {
	Name string
	Data any
	At   time.Time
}

// Journal logs every message it listens to and keeps the most recent ones.
type Journal struct {
	ctx    bridge.Bridge
	logger *logging.Logger
	logCtx context.Context

	mu       sync.Mutex
	messages []string
	limit    int
	entries  []Entry
}

// NewJournal is the journal's Creator.
func NewJournal(ctx bridge.Bridge) (application.Module, error) {
	return &Journal{ctx: ctx}, nil
}

// Init reads the "messages" and "limit" config entries.
func (j *Journal) Init() error {
	res, err := j.ctx.GetConfig(bridge.Whole)
	if err != nil {
		return err
	}
	cfg, _ := res.Whole()

	messages := defaultJournalMessages
	if raw, ok := cfg["messages"]; ok {
		messages, err = stringList(raw)
		if err != nil {
			return fmt.Errorf("journal messages: %w", err)
		}
	}

	limit := defaultJournalLimit
	if raw, ok := cfg["limit"]; ok {
		n, ok := raw.(float64)
		if !ok || n < 1 {
			return fmt.Errorf("journal limit must be a positive number, got %v", raw)
		}
		limit = int(n)
	}

	j.mu.Lock()
	j.messages = messages
	j.limit = limit
	j.mu.Unlock()

	j.logger = loggerFor(j.ctx).ForModule(JournalName)
	j.logCtx = logging.WithModule(context.Background(), moduleContext(j.ctx, JournalName))
	return nil
}

func (j *Journal) Destroy() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// Messages returns the configured message names.
func (j *Journal) Messages() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.messages...)
}

func (j *Journal) OnMessage(name string, data any) {
	j.logger.Info(j.logCtx, "message received", zap.String("message", name), zap.Any("data", data))

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, Entry{Name: name, Data: data, At: time.Now()})
	if over := len(j.entries) - j.limit; over > 0 {
		j.entries = append([]Entry(nil), j.entries[over:]...)
	}
}

// Entries returns the recorded messages, oldest first.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

func stringList(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("expected non-empty strings, got %v", item)
		}
		out = append(out, s)
	}
	return out, nil
}
