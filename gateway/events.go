// Package gateway is the boundary to the bot shell which owns the platform
// session: it carries platform side-effect calls out and platform events in
// over a single websocket, and exposes the orchestrator's HTTP surface.
package gateway

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-hubs/platform"
)

// decodeEvent turns a named wire payload into one of the closed platform
// event types. Unknown event names are rejected, they never reach the
// controller.
func decodeEvent(name string, payload map[string]interface{}) (platform.Event, error) {
	switch name {
	case platform.EventNameReady:
		return platform.ReadyEvent{}, nil

	case platform.EventNameVoiceState:
		var ev platform.VoiceStateEvent
		if err := mapstructure.WeakDecode(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case platform.EventNameChannelDelete:
		var ev platform.ChannelDeleteEvent
		if err := mapstructure.WeakDecode(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, fmt.Errorf("unknown event %q", name)
}
