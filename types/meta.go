package types

// RoomMeta is the run-time state of one currently tracked room. It is held
// exclusively in the controller's cache and never persisted: after a process
// restart a rediscovered room reverts to mode "open" with empty lists. That
// loss is an intentional property of the design, not an implementation gap.
type RoomMeta struct {
	ChannelId int64
	CreatorId int64
	Mode      Mode

	Whitelist map[int64]struct{}
	Blacklist map[int64]struct{}
	// ConferenceAllowed is the frozen occupant snapshot taken when the room
	// entered conference mode. Empty in every other mode.
	ConferenceAllowed map[int64]struct{}

	// Location of the rendered control panel, zero if no placement succeeded.
	PanelChannelId int64
	PanelMessageId int64

	// AppliedHash is the hash of the last overwrite set fully applied to the
	// live channel, used to skip redundant re-applications.
	AppliedHash uint64 `hash:"ignore"`
}

func NewRoomMeta(channelId, creatorId int64) *RoomMeta {
	return &RoomMeta{
		ChannelId:         channelId,
		CreatorId:         creatorId,
		Mode:              ModeOpen,
		Whitelist:         make(map[int64]struct{}),
		Blacklist:         make(map[int64]struct{}),
		ConferenceAllowed: make(map[int64]struct{}),
	}
}

// Clone returns a deep copy, used whenever meta leaves the controller.
func (m *RoomMeta) Clone() *RoomMeta {
	c := *m
	c.Whitelist = copySet(m.Whitelist)
	c.Blacklist = copySet(m.Blacklist)
	c.ConferenceAllowed = copySet(m.ConferenceAllowed)
	return &c
}

func copySet(s map[int64]struct{}) map[int64]struct{} {
	c := make(map[int64]struct{}, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}
