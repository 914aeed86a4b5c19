package modules

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/bridge"
	"github.com/fyrsmithlabs/boxd/internal/logging"
)

// RouterName is the data-module value for the router.
const RouterName = "router"

// Router messages.
const (
	LinkClickedMessage   = "link:clicked"
	RouteRejectedMessage = "route:rejected"
)

// Router navigates when a link is clicked. The message data carries
// "href" and optionally "state" and "params" objects.
type Router struct {
	ctx    bridge.Bridge
	logger *logging.Logger
	logCtx context.Context
}

// NewRouter is the router's Creator.
func NewRouter(ctx bridge.Bridge) (application.Module, error) {
	return &Router{ctx: ctx}, nil
}

func (r *Router) Init() error {
	r.logger = loggerFor(r.ctx).ForModule(RouterName)
	r.logCtx = logging.WithModule(context.Background(), moduleContext(r.ctx, RouterName))
	return nil
}

func (r *Router) Destroy() {}

func (r *Router) Messages() []string {
	return []string{LinkClickedMessage}
}

func (r *Router) OnMessage(_ string, data any) {
	payload, _ := data.(map[string]any)
	href, _ := payload["href"].(string)

	if err := r.follow(href, payload); err != nil {
		r.logger.Warn(r.logCtx, "navigation rejected", zap.String("href", href), zap.Error(err))
		r.ctx.Broadcast(RouteRejectedMessage, map[string]any{
			"href":  href,
			"error": err.Error(),
		})
	}
}

// follow navigates to href. An empty href keeps the current location and
// only records state and params.
func (r *Router) follow(href string, payload map[string]any) error {
	var target *url.URL
	if href != "" {
		u, err := url.Parse(href)
		if err != nil {
			return fmt.Errorf("invalid href: %w", err)
		}
		target = u
	}

	state, _ := payload["state"].(map[string]any)
	params, _ := payload["params"].(map[string]any)
	return r.ctx.Navigate(target, state, params)
}
