package platform

// Event is one of the closed set of platform events the orchestrator reacts
// to. Anything else the shell emits is dropped at the decoding boundary.
type Event interface {
	EventName() string
}

const (
	EventNameReady         = "ready"
	EventNameVoiceState    = "voice_state_update"
	EventNameChannelDelete = "channel_delete"
)

// ReadyEvent signals that the platform connection is up and the channel
// cache is primed. It triggers the startup reconciliation sweep.
type ReadyEvent struct{}

func (ReadyEvent) EventName() string { return EventNameReady }

// VoiceStateEvent reports a member's voice channel change. A zero
// FromChannelId/ToChannelId means "not connected". UserName and UserDisplay
// carry the member's handle and display name for room naming.
type VoiceStateEvent struct {
	GuildId       int64  `mapstructure:"guild_id"`
	UserId        int64  `mapstructure:"user_id"`
	UserName      string `mapstructure:"user_name"`
	UserDisplay   string `mapstructure:"user_display"`
	FromChannelId int64  `mapstructure:"from_channel_id"`
	ToChannelId   int64  `mapstructure:"to_channel_id"`
}

func (VoiceStateEvent) EventName() string { return EventNameVoiceState }

// ChannelDeleteEvent reports an external deletion of a live channel.
type ChannelDeleteEvent struct {
	GuildId   int64 `mapstructure:"guild_id"`
	ChannelId int64 `mapstructure:"channel_id"`
}

func (ChannelDeleteEvent) EventName() string { return EventNameChannelDelete }
