package platform

import (
	"context"
	"sync"
)

// Memory is an in-memory Client used by the tests and by the daemon's
// simulator mode. It keeps full channel/overwrite/message state and offers
// mutators to stage live platform state from the outside, the way the real
// platform mutates behind the orchestrator's back.
type Memory struct {
	mu         sync.Mutex
	nextId     int64
	channels   map[int64]*Channel
	overwrites map[int64]map[int64]Overwrite
	messages   map[int64][]MemoryMessage
	dmChannels map[int64]int64 // user id -> dm channel id

	// DenySendIn makes SendMessage fail for the given channel ids, used to
	// exercise the control panel fallback chain.
	DenySendIn map[int64]struct{}
	// FailOverwriteFor makes SetOverwrite fail for the given target ids.
	FailOverwriteFor map[int64]struct{}
	// DenyDMTo makes SendDirectMessage fail for the given user ids.
	DenyDMTo map[int64]struct{}
}

type MemoryMessage struct {
	Id      int64
	Content string
}

func NewMemory() *Memory {
	return &Memory{
		nextId:           1000,
		channels:         make(map[int64]*Channel),
		overwrites:       make(map[int64]map[int64]Overwrite),
		messages:         make(map[int64][]MemoryMessage),
		dmChannels:       make(map[int64]int64),
		DenySendIn:       make(map[int64]struct{}),
		FailOverwriteFor: make(map[int64]struct{}),
		DenyDMTo:         make(map[int64]struct{}),
	}
}

func (m *Memory) newId() int64 {
	m.nextId++
	return m.nextId
}

// AddChannel stages a pre-existing live channel (hubs, sibling text
// channels) and returns its id.
func (m *Memory) AddChannel(ch Channel) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch.Id == 0 {
		ch.Id = m.newId()
	}
	c := ch
	m.channels[c.Id] = &c
	return c.Id
}

// PlaceMember puts a member into a voice channel, removing them from any
// other, bypassing the orchestrator (external mutation path).
func (m *Memory) PlaceMember(userId, channelId int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeOccupant(userId)
	if ch, ok := m.channels[channelId]; ok {
		ch.Occupants = append(ch.Occupants, userId)
	}
}

// DropMember disconnects a member from voice entirely.
func (m *Memory) DropMember(userId int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeOccupant(userId)
}

// RemoveChannel deletes a live channel out from under the orchestrator.
func (m *Memory) RemoveChannel(channelId int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, channelId)
	delete(m.overwrites, channelId)
}

// Messages returns the messages sent into a channel so far.
func (m *Memory) Messages(channelId int64) []MemoryMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryMessage, len(m.messages[channelId]))
	copy(out, m.messages[channelId])
	return out
}

// DirectChannelOf returns the dm channel id of a user, 0 if none was opened.
func (m *Memory) DirectChannelOf(userId int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dmChannels[userId]
}

func (m *Memory) removeOccupant(userId int64) {
	for _, ch := range m.channels {
		for i, occ := range ch.Occupants {
			if occ == userId {
				ch.Occupants = append(ch.Occupants[:i], ch.Occupants[i+1:]...)
				break
			}
		}
	}
}

func (m *Memory) snapshot(ch *Channel) *Channel {
	c := *ch
	c.Occupants = append([]int64(nil), ch.Occupants...)
	return &c
}

func (m *Memory) CreateVoiceChannel(_ context.Context, guildId int64, name string, parentId int64, userLimit int, overwrites map[int64]Overwrite) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := &Channel{
		Id:        m.newId(),
		GuildId:   guildId,
		ParentId:  parentId,
		Type:      ChannelVoice,
		Name:      name,
		UserLimit: userLimit,
	}
	m.channels[ch.Id] = ch
	ows := make(map[int64]Overwrite, len(overwrites))
	for target, ow := range overwrites {
		ows[target] = ow
	}
	m.overwrites[ch.Id] = ows
	return m.snapshot(ch), nil
}

func (m *Memory) DeleteChannel(_ context.Context, channelId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelId]; !ok {
		return ErrNotFound
	}
	delete(m.channels, channelId)
	delete(m.overwrites, channelId)
	return nil
}

func (m *Memory) Channel(_ context.Context, channelId int64) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelId]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshot(ch), nil
}

func (m *Memory) GuildChannels(_ context.Context, guildId int64) ([]*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Channel, 0)
	for _, ch := range m.channels {
		if ch.GuildId == guildId {
			out = append(out, m.snapshot(ch))
		}
	}
	return out, nil
}

func (m *Memory) VoiceChannelIds(_ context.Context) (map[int64]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]struct{})
	for id, ch := range m.channels {
		if ch.Type == ChannelVoice {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *Memory) MoveMember(_ context.Context, _, userId, channelId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelId]; !ok {
		return ErrNotFound
	}
	m.removeOccupant(userId)
	m.channels[channelId].Occupants = append(m.channels[channelId].Occupants, userId)
	return nil
}

func (m *Memory) DisconnectMember(_ context.Context, _, userId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeOccupant(userId)
	return nil
}

func (m *Memory) Overwrites(_ context.Context, channelId int64) (map[int64]Overwrite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelId]; !ok {
		return nil, ErrNotFound
	}
	out := make(map[int64]Overwrite, len(m.overwrites[channelId]))
	for target, ow := range m.overwrites[channelId] {
		out[target] = ow
	}
	return out, nil
}

func (m *Memory) SetOverwrite(_ context.Context, channelId, targetId int64, overwrite Overwrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.FailOverwriteFor[targetId]; ok {
		return ErrPermission
	}
	if _, ok := m.channels[channelId]; !ok {
		return ErrNotFound
	}
	if m.overwrites[channelId] == nil {
		m.overwrites[channelId] = make(map[int64]Overwrite)
	}
	m.overwrites[channelId][targetId] = overwrite
	return nil
}

func (m *Memory) RemoveOverwrite(_ context.Context, channelId, targetId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelId]; !ok {
		return ErrNotFound
	}
	delete(m.overwrites[channelId], targetId)
	return nil
}

func (m *Memory) SendMessage(_ context.Context, channelId int64, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.DenySendIn[channelId]; ok {
		return 0, ErrPermission
	}
	if _, ok := m.channels[channelId]; !ok {
		return 0, ErrNotFound
	}
	id := m.newId()
	m.messages[channelId] = append(m.messages[channelId], MemoryMessage{Id: id, Content: content})
	return id, nil
}

func (m *Memory) EditMessage(_ context.Context, channelId, messageId int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.messages[channelId] {
		if msg.Id == messageId {
			m.messages[channelId][i].Content = content
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SendDirectMessage(_ context.Context, userId int64, content string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.DenyDMTo[userId]; ok {
		return 0, 0, ErrPermission
	}
	dm, ok := m.dmChannels[userId]
	if !ok {
		dm = m.newId()
		m.dmChannels[userId] = dm
	}
	id := m.newId()
	m.messages[dm] = append(m.messages[dm], MemoryMessage{Id: id, Content: content})
	return dm, id, nil
}
