package application

import (
	"errors"

	"github.com/fyrsmithlabs/boxd/internal/bridge"
)

// Errors for module registration and lifecycle.
var (
	ErrModuleExists    = errors.New("module already registered")
	ErrModuleNotFound  = errors.New("module not registered")
	ErrNoModuleName    = errors.New("element has no data-module attribute")
	ErrInstanceMissing = errors.New("module instance not started")
)

// ModuleAttr names the element attribute that selects a module type.
const ModuleAttr = "data-module"

// ErrorMessage is broadcast when a module fails outside debug mode.
const ErrorMessage = "error"

// NavigateMessage is broadcast after every successful navigation.
const NavigateMessage = "navigate"

// Module is a module instance bound to one element.
type Module interface {
	Init() error
	Destroy()
}

// MessageHandler is implemented by modules that listen to broadcasts.
type MessageHandler interface {
	Messages() []string
	OnMessage(name string, data any)
}

// Creator builds a module instance around its bridge.
type Creator func(ctx bridge.Bridge) (Module, error)

// ErrorEvent is the payload of an ErrorMessage broadcast.
type ErrorEvent struct {
	Module string `json:"module"`
	ID     string `json:"id"`
	Op     string `json:"op"`
	Err    error  `json:"-"`
	Error  string `json:"error"`
}

// InstanceInfo describes a started module instance.
type InstanceInfo struct {
	ID       string   `json:"id"`
	Module   string   `json:"module"`
	Messages []string `json:"messages,omitempty"`
}
