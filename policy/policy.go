// Package policy maps a room's mode and access lists to the concrete
// authorization overwrite set of its live channel. The computation is pure;
// Apply pushes the set to the platform idempotently.
package policy

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/types"
)

// Everyone returns the catch-all overwrite for the rest of the community
// under the given mode.
func Everyone(mode types.Mode) platform.Overwrite {
	switch mode {
	case types.ModeClosed:
		return platform.Overwrite{Allow: platform.PermViewChannel, Deny: platform.PermConnect}
	case types.ModePrivate:
		return platform.Overwrite{Deny: platform.PermViewChannel | platform.PermConnect}
	case types.ModeConference:
		return platform.Overwrite{Allow: platform.PermViewChannel | platform.PermConnect, Deny: platform.PermSpeak}
	default: // open
		return platform.Overwrite{Allow: platform.PermViewChannel | platform.PermConnect}
	}
}

// Overwrites computes the per-identity overwrite set for a room. The
// creator's overwrite always includes the elevated control bits. Later
// assignments win, so the blacklist overrides list memberships and the
// creator overrides everything.
func Overwrites(meta *types.RoomMeta) map[int64]platform.Overwrite {
	out := make(map[int64]platform.Overwrite)

	var allow, deny platform.Permissions
	switch meta.Mode {
	case types.ModeClosed:
		allow, deny = platform.PermConnect, platform.PermConnect
	case types.ModePrivate:
		allow = platform.PermViewChannel | platform.PermConnect
		deny = platform.PermViewChannel | platform.PermConnect
	case types.ModeConference:
		allow = platform.PermConnect | platform.PermSpeak
		deny = platform.PermConnect | platform.PermSpeak
	default: // open
		allow, deny = platform.PermConnect, platform.PermConnect
	}

	if meta.Mode == types.ModeConference {
		for id := range meta.ConferenceAllowed {
			out[id] = platform.Overwrite{Allow: allow}
		}
	}
	for id := range meta.Whitelist {
		out[id] = platform.Overwrite{Allow: allow}
	}
	for id := range meta.Blacklist {
		out[id] = platform.Overwrite{Deny: deny}
	}
	creator := platform.Elevated()
	creator.Allow |= allow
	out[meta.CreatorId] = creator
	return out
}

// Eligible reports whether a user may occupy the room under the current
// mode: connect denied means ineligible. The creator is always eligible.
func Eligible(meta *types.RoomMeta, userId int64) bool {
	if userId == meta.CreatorId {
		return true
	}
	if _, ok := meta.Blacklist[userId]; ok {
		return false
	}
	switch meta.Mode {
	case types.ModeClosed, types.ModePrivate:
		_, ok := meta.Whitelist[userId]
		return ok
	default: // open and conference leave connect allowed
		return true
	}
}

// Apply pushes the overwrite set derived from meta onto the live channel.
// Re-applying an unchanged set is a no-op (detected via a structural hash of
// the desired set). Per-identity failures are logged and skipped; stale
// overwrites not justified by creator/whitelist/blacklist/conference are
// removed. Returns the first error only when the channel itself is
// unreachable.
func Apply(ctx context.Context, client platform.Client, meta *types.RoomMeta, logger hclog.Logger) error {
	desired := Overwrites(meta)
	everyone := Everyone(meta.Mode)

	hash, err := hashstructure.Hash(struct {
		Everyone platform.Overwrite
		Desired  map[int64]platform.Overwrite
	}{everyone, desired}, hashstructure.FormatV2, nil)
	if err == nil && hash == meta.AppliedHash && meta.AppliedHash != 0 {
		logger.Debug("overwrite set unchanged, skipping", "channel", meta.ChannelId)
		return nil
	}

	ch, err := client.Channel(ctx, meta.ChannelId)
	if err != nil {
		return err
	}

	clean := true
	// the @everyone role shares the guild id
	if err := client.SetOverwrite(ctx, meta.ChannelId, ch.GuildId, everyone); err != nil {
		logger.Warn("could not set default overwrite", "channel", meta.ChannelId, "error", err)
		clean = false
	}
	for target, ow := range desired {
		if err := client.SetOverwrite(ctx, meta.ChannelId, target, ow); err != nil {
			logger.Warn("could not set overwrite", "channel", meta.ChannelId, "target", target, "error", err)
			clean = false
		}
	}

	current, err := client.Overwrites(ctx, meta.ChannelId)
	if err != nil {
		logger.Warn("could not list overwrites for cleanup", "channel", meta.ChannelId, "error", err)
		current = nil
		clean = false
	}
	for target := range current {
		if target == ch.GuildId {
			continue
		}
		if _, ok := desired[target]; ok {
			continue
		}
		if err := client.RemoveOverwrite(ctx, meta.ChannelId, target); err != nil {
			logger.Warn("could not remove stale overwrite", "channel", meta.ChannelId, "target", target, "error", err)
			clean = false
		}
	}

	if clean {
		meta.AppliedHash = hash
	} else {
		// leave the hash untouched so the next application retries
		meta.AppliedHash = 0
	}
	return nil
}
