package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-hubs/platform"
)

const (
	writeWait        = 10 * time.Second
	eventChannelSize = 1000
	maxMessageSize   = 1 << 20
)

// frame is the single wire envelope of the shell connection. Requests carry
// Id+Op+Args, replies carry Id+Ok+Result/Error, events carry Event+Payload.
type frame struct {
	Id      string                 `json:"id,omitempty"`
	Op      string                 `json:"op,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
	Ok      *bool                  `json:"ok,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Event   string                 `json:"event,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// RemoteClient implements platform.Client against the bot shell over one
// websocket connection. Replies are matched to requests by correlation id,
// events are forwarded on Events().
type RemoteClient struct {
	conn   *websocket.Conn
	logger hclog.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame

	events chan platform.Event
	done   chan struct{}
}

// Dial connects to the bot shell and starts the read pump.
func Dial(url string, logger hclog.Logger) (*RemoteClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	c := &RemoteClient{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan frame),
		events:  make(chan platform.Event, eventChannelSize),
		done:    make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

// Events delivers the decoded platform events. The channel closes when the
// connection drops.
func (c *RemoteClient) Events() <-chan platform.Event {
	return c.events
}

// Done closes when the connection is gone; the daemon reconnects.
func (c *RemoteClient) Done() <-chan struct{} {
	return c.done
}

func (c *RemoteClient) Close() error {
	return c.conn.Close()
}

// readPump is the single reader of the connection: it dispatches replies to
// their waiting callers and decoded events to the event channel.
func (c *RemoteClient) readPump() {
	defer func() {
		c.conn.Close()
		close(c.events)
		close(c.done)
		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.logger.Error("gateway connection lost", "error", err)
			return
		}
		if f.Event != "" {
			ev, err := decodeEvent(f.Event, f.Payload)
			if err != nil {
				c.logger.Warn("dropping event", "event", f.Event, "error", err)
				continue
			}
			select {
			case c.events <- ev:
			default:
				c.logger.Warn("event channel full, dropping event", "event", f.Event)
			}
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[f.Id]
		if ok {
			delete(c.pending, f.Id)
		}
		c.pendingMu.Unlock()
		if !ok {
			c.logger.Warn("reply for unknown request", "id", f.Id)
			continue
		}
		ch <- f
	}
}

// call performs one request/reply round-trip. A nil out skips result
// decoding.
func (c *RemoteClient) call(ctx context.Context, op string, args map[string]interface{}, out interface{}) error {
	id := uuid.NewString()
	reply := make(chan frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()

	req := frame{Id: id, Op: op, Args: args}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return err
	}

	select {
	case f, ok := <-reply:
		if !ok {
			return fmt.Errorf("gateway connection closed")
		}
		if f.Ok == nil || !*f.Ok {
			if f.Error == "not found" {
				return platform.ErrNotFound
			}
			return fmt.Errorf("gateway %s: %s", op, f.Error)
		}
		if out != nil {
			return mapstructure.WeakDecode(f.Result, out)
		}
		return nil

	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ctx.Err()
	}
}

func (c *RemoteClient) CreateVoiceChannel(ctx context.Context, guildId int64, name string, parentId int64, userLimit int, overwrites map[int64]platform.Overwrite) (*platform.Channel, error) {
	ows := make(map[string]platform.Overwrite, len(overwrites))
	for target, ow := range overwrites {
		ows[fmt.Sprintf("%d", target)] = ow
	}
	var res struct {
		Channel platform.Channel `mapstructure:"channel"`
	}
	err := c.call(ctx, "create_voice_channel", map[string]interface{}{
		"guild_id":   guildId,
		"name":       name,
		"parent_id":  parentId,
		"user_limit": userLimit,
		"overwrites": ows,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res.Channel, nil
}

func (c *RemoteClient) DeleteChannel(ctx context.Context, channelId int64) error {
	return c.call(ctx, "delete_channel", map[string]interface{}{"channel_id": channelId}, nil)
}

func (c *RemoteClient) Channel(ctx context.Context, channelId int64) (*platform.Channel, error) {
	var res struct {
		Channel platform.Channel `mapstructure:"channel"`
	}
	err := c.call(ctx, "get_channel", map[string]interface{}{"channel_id": channelId}, &res)
	if err != nil {
		return nil, err
	}
	return &res.Channel, nil
}

func (c *RemoteClient) GuildChannels(ctx context.Context, guildId int64) ([]*platform.Channel, error) {
	var res struct {
		Channels []*platform.Channel `mapstructure:"channels"`
	}
	err := c.call(ctx, "guild_channels", map[string]interface{}{"guild_id": guildId}, &res)
	if err != nil {
		return nil, err
	}
	return res.Channels, nil
}

func (c *RemoteClient) VoiceChannelIds(ctx context.Context) (map[int64]struct{}, error) {
	var res struct {
		ChannelIds []int64 `mapstructure:"channel_ids"`
	}
	err := c.call(ctx, "voice_channel_ids", nil, &res)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(res.ChannelIds))
	for _, id := range res.ChannelIds {
		out[id] = struct{}{}
	}
	return out, nil
}

func (c *RemoteClient) MoveMember(ctx context.Context, guildId, userId, channelId int64) error {
	return c.call(ctx, "move_member", map[string]interface{}{
		"guild_id":   guildId,
		"user_id":    userId,
		"channel_id": channelId,
	}, nil)
}

func (c *RemoteClient) DisconnectMember(ctx context.Context, guildId, userId int64) error {
	return c.call(ctx, "disconnect_member", map[string]interface{}{
		"guild_id": guildId,
		"user_id":  userId,
	}, nil)
}

func (c *RemoteClient) Overwrites(ctx context.Context, channelId int64) (map[int64]platform.Overwrite, error) {
	var res struct {
		Overwrites map[string]platform.Overwrite `mapstructure:"overwrites"`
	}
	err := c.call(ctx, "get_overwrites", map[string]interface{}{"channel_id": channelId}, &res)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]platform.Overwrite, len(res.Overwrites))
	for target, ow := range res.Overwrites {
		var id int64
		if _, err := fmt.Sscanf(target, "%d", &id); err == nil {
			out[id] = ow
		}
	}
	return out, nil
}

func (c *RemoteClient) SetOverwrite(ctx context.Context, channelId, targetId int64, overwrite platform.Overwrite) error {
	return c.call(ctx, "set_overwrite", map[string]interface{}{
		"channel_id": channelId,
		"target_id":  targetId,
		"allow":      uint64(overwrite.Allow),
		"deny":       uint64(overwrite.Deny),
	}, nil)
}

func (c *RemoteClient) RemoveOverwrite(ctx context.Context, channelId, targetId int64) error {
	return c.call(ctx, "remove_overwrite", map[string]interface{}{
		"channel_id": channelId,
		"target_id":  targetId,
	}, nil)
}

func (c *RemoteClient) SendMessage(ctx context.Context, channelId int64, content string) (int64, error) {
	var res struct {
		MessageId int64 `mapstructure:"message_id"`
	}
	err := c.call(ctx, "send_message", map[string]interface{}{
		"channel_id": channelId,
		"content":    content,
	}, &res)
	if err != nil {
		return 0, err
	}
	return res.MessageId, nil
}

func (c *RemoteClient) EditMessage(ctx context.Context, channelId, messageId int64, content string) error {
	return c.call(ctx, "edit_message", map[string]interface{}{
		"channel_id": channelId,
		"message_id": messageId,
		"content":    content,
	}, nil)
}

func (c *RemoteClient) SendDirectMessage(ctx context.Context, userId int64, content string) (int64, int64, error) {
	var res struct {
		ChannelId int64 `mapstructure:"channel_id"`
		MessageId int64 `mapstructure:"message_id"`
	}
	err := c.call(ctx, "send_direct_message", map[string]interface{}{
		"user_id": userId,
		"content": content,
	}, &res)
	if err != nil {
		return 0, 0, err
	}
	return res.ChannelId, res.MessageId, nil
}
