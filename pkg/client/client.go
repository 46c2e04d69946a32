// Package client 連線到辯論計時器的中繼，讓主持人發布狀態、讓觀眾接收狀態。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/debate"
	"debate_timer/internal/models"
	"debate_timer/internal/replica"
)

var ErrNotConnected = errors.New("relay is not connected")

const writeWait = 10 * time.Second

// Backoff 是斷線重連的等待時間
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff 從 500ms 開始加倍，最多 30 秒
func DefaultBackoff() Backoff {
	return Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2}
}

func (b Backoff) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * b.Multiplier)
	if d > b.Max {
		return b.Max
	}
	return d
}

type Options struct {
	// BaseURL 是伺服器位址，例如 http://localhost:8080
	BaseURL        string
	RoomID         string
	Role           replica.Role
	ModeratorToken string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Backoff    Backoff
	Clock      clockwork.Clock
}

type negotiation struct {
	URL    string `json:"url"`
	UserID string `json:"userId"`
}

type roomStatus struct {
	Exists bool             `json:"exists"`
	State  *debate.RunState `json:"state"`
}

// Client 維持一條到中繼的連線，斷線時自動重連
type Client struct {
	opts  Options
	group string

	onState  func(debate.RunState)
	onNotice func(debate.Notice)

	mu     sync.Mutex
	conn   *websocket.Conn
	userID string

	writeMu sync.Mutex
	ackID   atomic.Uint64
}

func New(opts Options) *Client {
	if opts.Role == "" {
		opts.Role = replica.RoleFor(opts.RoomID, opts.ModeratorToken != "")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Client{
		opts:     opts,
		group:    replica.Topic(opts.RoomID),
		onState:  func(debate.RunState) {},
		onNotice: func(debate.Notice) {},
	}
}

// OnState 設定收到完整狀態時的回呼，必須在 Run 之前設定
func (c *Client) OnState(fn func(debate.RunState)) { c.onState = fn }

// OnNotice 設定收到提示時的回呼，必須在 Run 之前設定
func (c *Client) OnNotice(fn func(debate.Notice)) { c.onNotice = fn }

// Connected 回報目前是否有可用的連線
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run 連線並持續接收訊息，直到 ctx 被取消
func (c *Client) Run(ctx context.Context) error {
	delay := c.opts.Backoff.Initial
	for {
		healthy, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if healthy {
			delay = c.opts.Backoff.Initial
		}
		log.Warn().Err(err).Str("room", c.opts.RoomID).Dur("retry_in", delay).Msg("relay connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.opts.Clock.After(delay):
		}
		delay = c.opts.Backoff.next(delay)
	}
}

// session 走完一次 協商、取快照、連線、加入群組 的流程，回傳連線是否曾經可用
func (c *Client) session(ctx context.Context) (bool, error) {
	n, err := c.negotiate(ctx)
	if err != nil {
		return false, err
	}
	if err := c.fetchSnapshot(ctx); err != nil {
		return false, err
	}

	conn, _, err := c.opts.Dialer.DialContext(ctx, n.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.mu.Lock()
	c.conn = conn
	c.userID = n.UserID
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	joinID := c.ackID.Add(1)
	if err := c.write(conn, models.Message{Type: models.MessageJoinGroup, Group: c.group, AckID: joinID}); err != nil {
		return false, fmt.Errorf("join group: %w", err)
	}

	joined := false
	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return joined, fmt.Errorf("read relay: %w", err)
		}
		if msg.Type == models.MessageAck && msg.AckID == joinID {
			if !msg.Success {
				return false, fmt.Errorf("join group rejected: %s", ackReason(msg))
			}
			joined = true
			log.Info().Str("room", c.opts.RoomID).Str("role", string(c.opts.Role)).Msg("relay joined")
			continue
		}
		c.handle(msg, n.UserID)
	}
}

func (c *Client) handle(msg models.Message, self string) {
	switch msg.Type {
	case models.MessageData:
		if !c.ownGroup(msg.Group) || msg.FromUserID == self {
			return
		}
		var st debate.RunState
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			log.Warn().Err(err).Str("room", c.opts.RoomID).Msg("dropping malformed state")
			return
		}
		c.onState(st)

	case models.MessageSystem:
		if msg.Event != models.EventNotice || !c.ownGroup(msg.Group) {
			return
		}
		var n debate.Notice
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			log.Warn().Err(err).Str("room", c.opts.RoomID).Msg("dropping malformed notice")
			return
		}
		c.onNotice(n)

	case models.MessageAck:
		if !msg.Success {
			log.Warn().Str("room", c.opts.RoomID).Uint64("ack", msg.AckID).Msg(ackReason(msg))
		}
	}
}

func (c *Client) ownGroup(group string) bool {
	room, ok := replica.RoomFromTopic(group)
	return ok && room == c.opts.RoomID
}

// Publish 以 sendToGroup 發送完整狀態，實作 replica.Publisher
func (c *Client) Publish(_ context.Context, roomID string, st debate.RunState) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return c.write(conn, models.Message{
		Type:     models.MessageSendToGroup,
		Group:    replica.Topic(roomID),
		AckID:    c.ackID.Add(1),
		DataType: models.DataTypeJSON,
		Data:     data,
	})
}

func (c *Client) write(conn *websocket.Conn, msg models.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (c *Client) negotiate(ctx context.Context) (negotiation, error) {
	q := url.Values{"room": {c.opts.RoomID}, "role": {string(c.opts.Role)}}
	var n negotiation
	if err := c.getJSON(ctx, "/api/negotiate?"+q.Encode(), &n); err != nil {
		return n, fmt.Errorf("negotiate: %w", err)
	}
	return n, nil
}

// fetchSnapshot 先交出房間保存的狀態，讓晚加入的觀眾不必等下一次廣播
func (c *Client) fetchSnapshot(ctx context.Context) error {
	var status roomStatus
	if err := c.getJSON(ctx, "/api/rooms?"+url.Values{"room": {c.opts.RoomID}}.Encode(), &status); err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	if status.State != nil {
		c.onState(*status.State)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.opts.ModeratorToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.ModeratorToken)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func ackReason(msg models.Message) string {
	if msg.Error == nil {
		return "request rejected"
	}
	return msg.Error.Name + ": " + msg.Error.Message
}

var _ replica.Publisher = (*Client)(nil)
