package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/telemetry"
	"github.com/tcriess/lightspeed-hubs/types"
)

// PanelRenderer builds the control panel content for a room. The real
// presentation layer (embeds, buttons) plugs in here; the orchestrator only
// decides where the panel lives.
type PanelRenderer interface {
	Render(meta *types.RoomMeta, channelName string) string
}

// TextRenderer is the default plain-text panel.
type TextRenderer struct{}

func (TextRenderer) Render(meta *types.RoomMeta, channelName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Control: %s\n", channelName)
	fmt.Fprintf(&b, "Creator: <@%d> | Mode: %s\n", meta.CreatorId, meta.Mode)
	fmt.Fprintf(&b, "Whitelist: %s\n", mentionList(meta.Whitelist))
	fmt.Fprintf(&b, "Blacklist: %s", mentionList(meta.Blacklist))
	return b.String()
}

func mentionList(set map[int64]struct{}) string {
	if len(set) == 0 {
		return "(empty)"
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("<@%d>", id))
	}
	return strings.Join(parts, ", ")
}

// placePanel tries, in order: the room's own text surface, a direct message
// to the creator, any sibling text channel in the same category. A room
// without a panel is still a valid room. meta is a caller-local snapshot, so
// rendering never reads shared maps without the lock.
func (m *Manager) placePanel(ctx context.Context, meta *types.RoomMeta, ch *platform.Channel) {
	content := m.renderer.Render(meta, ch.Name)

	if msgId, err := m.client.SendMessage(ctx, ch.Id, content); err == nil {
		m.setPanelLocation(meta, ch.Id, msgId)
		return
	}

	if dmId, msgId, err := m.client.SendDirectMessage(ctx, meta.CreatorId, content); err == nil {
		m.setPanelLocation(meta, dmId, msgId)
		telemetry.PanelFallbacks.Inc()
		return
	}

	siblings, err := m.client.GuildChannels(ctx, ch.GuildId)
	if err != nil {
		m.logger.Debug("no panel placed", "room", ch.Id, "error", err)
		return
	}
	for _, sib := range siblings {
		if sib.Type != platform.ChannelText || sib.ParentId != ch.ParentId {
			continue
		}
		if msgId, err := m.client.SendMessage(ctx, sib.Id, content); err == nil {
			m.setPanelLocation(meta, sib.Id, msgId)
			telemetry.PanelFallbacks.Inc()
			return
		}
	}
	m.logger.Debug("no panel placed", "room", ch.Id)
}

// setPanelLocation records the placement on the snapshot and on the
// canonical meta of the room, if it is still tracked.
func (m *Manager) setPanelLocation(meta *types.RoomMeta, channelId, messageId int64) {
	meta.PanelChannelId = channelId
	meta.PanelMessageId = messageId
	m.mu.Lock()
	if canon, ok := m.meta[meta.ChannelId]; ok && canon != meta {
		canon.PanelChannelId = channelId
		canon.PanelMessageId = messageId
	}
	m.mu.Unlock()
}

// refreshPanel re-renders the panel in place; if the recorded message cannot
// be edited anymore, the placement chain runs again. meta is a caller-local
// snapshot.
func (m *Manager) refreshPanel(ctx context.Context, meta *types.RoomMeta) {
	ch, err := m.client.Channel(ctx, meta.ChannelId)
	if err != nil {
		return
	}
	if meta.PanelMessageId != 0 {
		content := m.renderer.Render(meta, ch.Name)
		if err := m.client.EditMessage(ctx, meta.PanelChannelId, meta.PanelMessageId, content); err == nil {
			return
		}
	}
	m.placePanel(ctx, meta, ch)
}
