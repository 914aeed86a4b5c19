package modules

import (
	"fmt"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/bridge"
	"github.com/fyrsmithlabs/boxd/internal/logging"
)

// LoggerService is the service name modules look their logger up under.
const LoggerService = "logger"

// Registrar accepts module types.
type Registrar interface {
	AddModule(name string, creator application.Creator) error
}

// Builtins maps each built-in module name to its creator.
func Builtins() map[string]application.Creator {
	return map[string]application.Creator{
		AnnouncerName: NewAnnouncer,
		JournalName:   NewJournal,
		RouterName:    NewRouter,
	}
}

// Register adds every built-in module type to r.
func Register(r Registrar) error {
	for _, name := range []string{AnnouncerName, JournalName, RouterName} {
		if err := r.AddModule(name, Builtins()[name]); err != nil {
			return fmt.Errorf("failed to register %s module: %w", name, err)
		}
	}
	return nil
}

// loggerFor returns the shared logger service, or a no-op logger.
func loggerFor(ctx bridge.Bridge) *logging.Logger {
	if l, ok := ctx.GetService(LoggerService).(*logging.Logger); ok {
		return l
	}
	return logging.NewNop()
}

// moduleContext tags log lines with the module's identity.
func moduleContext(ctx bridge.Bridge, name string) logging.Module {
	mod := logging.Module{Name: name}
	if el := ctx.GetElement(); el != nil {
		mod.ID = el.ID()
	}
	return mod
}
