// Package platform defines the client abstraction over the chat platform.
// The orchestrator never talks to the platform's transport itself, it calls
// this interface; the bot shell provides the concrete binding.
package platform

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("platform: not found")
	ErrPermission = errors.New("platform: missing permission")
)

// Permissions is the platform permission bitmask. Only the bits the
// orchestrator actually sets are defined here.
type Permissions uint64

const (
	PermViewChannel Permissions = 1 << iota
	PermConnect
	PermSpeak
	PermManageChannel
	PermMoveMembers
	PermMuteMembers
	PermDeafenMembers
	PermStream
	PermPrioritySpeaker
	PermUseVoiceActivation
)

// Overwrite is a per-identity authorization overwrite as an allow/deny pair.
// A bit set in neither mask is inherited from the channel defaults.
type Overwrite struct {
	Allow Permissions `json:"allow" mapstructure:"allow"`
	Deny  Permissions `json:"deny" mapstructure:"deny"`
}

func (o Overwrite) IsZero() bool {
	return o.Allow == 0 && o.Deny == 0
}

// Elevated is the overwrite granted to a room's creator on top of the mode
// policy: full control over the channel and its occupants.
func Elevated() Overwrite {
	return Overwrite{
		Allow: PermManageChannel | PermMoveMembers | PermMuteMembers | PermDeafenMembers |
			PermConnect | PermSpeak | PermStream | PermPrioritySpeaker | PermUseVoiceActivation,
	}
}

type ChannelType int

const (
	ChannelVoice ChannelType = iota
	ChannelText
)

// Channel is a point-in-time snapshot of a live channel. Occupants is only
// populated for voice channels.
type Channel struct {
	Id        int64       `json:"id" mapstructure:"id"`
	GuildId   int64       `json:"guild_id" mapstructure:"guild_id"`
	ParentId  int64       `json:"parent_id" mapstructure:"parent_id"` // category, 0 = none
	Type      ChannelType `json:"type" mapstructure:"type"`
	Name      string      `json:"name" mapstructure:"name"`
	UserLimit int         `json:"user_limit" mapstructure:"user_limit"`
	Occupants []int64     `json:"occupants" mapstructure:"occupants"`
}

// Client is the platform side-effect surface consumed by the orchestrator.
// Every call is a single round-trip against the live platform state.
type Client interface {
	CreateVoiceChannel(ctx context.Context, guildId int64, name string, parentId int64, userLimit int, overwrites map[int64]Overwrite) (*Channel, error)
	DeleteChannel(ctx context.Context, channelId int64) error
	Channel(ctx context.Context, channelId int64) (*Channel, error)
	GuildChannels(ctx context.Context, guildId int64) ([]*Channel, error)
	// VoiceChannelIds enumerates every live voice channel id visible to the
	// session, across all guilds. This is the reconciliation baseline.
	VoiceChannelIds(ctx context.Context) (map[int64]struct{}, error)

	MoveMember(ctx context.Context, guildId, userId, channelId int64) error
	DisconnectMember(ctx context.Context, guildId, userId int64) error

	Overwrites(ctx context.Context, channelId int64) (map[int64]Overwrite, error)
	SetOverwrite(ctx context.Context, channelId, targetId int64, overwrite Overwrite) error
	RemoveOverwrite(ctx context.Context, channelId, targetId int64) error

	SendMessage(ctx context.Context, channelId int64, content string) (int64, error)
	EditMessage(ctx context.Context, channelId, messageId int64, content string) error
	SendDirectMessage(ctx context.Context, userId int64, content string) (int64, int64, error)
}
