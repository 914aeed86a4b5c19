package modules

import (
	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/bridge"
)

// AnnouncerName is the data-module value for the announcer.
const AnnouncerName = "announcer"

// ReadyMessage is broadcast by the announcer on start.
const ReadyMessage = "module:ready"

// Announcer broadcasts ReadyMessage with its id, name and configured
// greeting.
type Announcer struct {
	ctx bridge.Bridge
}

// NewAnnouncer is the announcer's Creator.
func NewAnnouncer(ctx bridge.Bridge) (application.Module, error) {
	return &Announcer{ctx: ctx}, nil
}

func (a *Announcer) Init() error {
	greeting, err := a.ctx.GetConfig(bridge.Named("greeting"))
	if err != nil {
		return err
	}

	payload := map[string]any{
		"name":     AnnouncerName,
		"greeting": greeting.Any(),
	}
	if el := a.ctx.GetElement(); el != nil {
		payload["id"] = el.ID()
	}
	a.ctx.Broadcast(ReadyMessage, payload)
	return nil
}

func (a *Announcer) Destroy() {}
