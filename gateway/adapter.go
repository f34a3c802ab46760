package gateway

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/tcriess/lightspeed-hubs/orchestrator"
	"github.com/tcriess/lightspeed-hubs/platform"
)

// Adapter translates platform events into controller calls. It is the only
// caller of the controller's event entry points.
type Adapter struct {
	manager *orchestrator.Manager
	logger  hclog.Logger
}

func NewAdapter(manager *orchestrator.Manager, logger hclog.Logger) *Adapter {
	return &Adapter{manager: manager, logger: logger}
}

// Run consumes events until the channel closes or the context is cancelled.
// Every event is handled in its own goroutine so one slow platform call does
// not stall the event stream; the controller's locking keeps overlapping
// operations safe.
func (a *Adapter) Run(ctx context.Context, events <-chan platform.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.handle(ctx, ev)

		case <-ctx.Done():
			return
		}
	}
}

func (a *Adapter) handle(ctx context.Context, ev platform.Event) {
	switch e := ev.(type) {
	case platform.ReadyEvent:
		a.logger.Info("platform ready, running startup sweep")
		go func() {
			if _, err := a.manager.Sweep(ctx); err != nil {
				a.logger.Error("startup sweep failed", "error", err)
			}
		}()

	case platform.VoiceStateEvent:
		go a.manager.HandleVoiceStateUpdate(ctx, e)

	case platform.ChannelDeleteEvent:
		go a.manager.HandleChannelDelete(ctx, e)

	default:
		a.logger.Warn("unhandled event", "event", ev.EventName())
	}
}
