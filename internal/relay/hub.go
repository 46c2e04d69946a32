package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"debate_timer/internal/debate"
	"debate_timer/internal/models"
	"debate_timer/internal/replica"
	"debate_timer/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Bridge 把本機群組訊息轉送給其他伺服器實例
type Bridge interface {
	Forward(group string, msg models.Message) error
}

// Options 設定每個連線的流量限制
type Options struct {
	RatePerSecond float64
	Burst         int
}

// Client 代表一個中繼 WebSocket 連線
type Client struct {
	Conn         *websocket.Conn
	ConnectionID string
	UserID       string
	Role         string
	SendChan     chan models.Message

	claims  *utils.RelayClaims
	limiter *rate.Limiter
	groups  map[string]bool // 受 Hub.mu 保護
}

// Hub 管理所有的中繼連線與群組
type Hub struct {
	groups  map[string]map[*Client]bool // group -> client -> bool
	clients map[*Client]bool
	mu      sync.RWMutex
	opts    Options

	bridgeMu sync.RWMutex
	bridge   Bridge
}

// NewHub 創建並初始化中繼
func NewHub(opts Options) *Hub {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 40
	}
	return &Hub{
		groups:  make(map[string]map[*Client]bool),
		clients: make(map[*Client]bool),
		opts:    opts,
	}
}

// SetBridge 設定跨實例的轉送
func (h *Hub) SetBridge(b Bridge) {
	h.bridgeMu.Lock()
	defer h.bridgeMu.Unlock()
	h.bridge = b
}

// HandleConnection 處理一個已驗證的連線，直到連線關閉才返回
func (h *Hub) HandleConnection(conn *websocket.Conn, claims *utils.RelayClaims) {
	client := &Client{
		Conn:         conn,
		ConnectionID: uuid.NewString(),
		UserID:       claims.UserID,
		Role:         claims.Role,
		SendChan:     make(chan models.Message, sendBufferSize),
		claims:       claims,
		limiter:      rate.NewLimiter(rate.Limit(h.opts.RatePerSecond), h.opts.Burst),
		groups:       make(map[string]bool),
	}
	h.addClient(client)
	log.Info().Str("user", client.UserID).Str("connection", client.ConnectionID).Str("role", client.Role).Msg("relay client connected")

	// 確保連接關閉時清理資源
	defer func() {
		h.removeClient(client)
		conn.Close()
		log.Info().Str("user", client.UserID).Str("connection", client.ConnectionID).Msg("relay client disconnected")
	}()

	client.SendChan <- models.NewConnectedMessage(client.UserID, client.ConnectionID)

	go h.writePump(client)
	h.readPump(client)
}

// readPump 持續讀取用戶端的請求
func (h *Hub) readPump(client *Client) {
	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection", client.ConnectionID).Msg("relay unexpected close")
			}
			return
		}

		var msg models.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Str("connection", client.ConnectionID).Msg("relay message parse error")
			h.ack(client, 0, &models.AckError{Name: models.AckInvalidMessage, Message: "malformed message"})
			continue
		}
		h.handle(client, msg)
	}
}

// handle 依訊息類型處理請求；沒有權限的請求只回覆錯誤，不會被轉發
func (h *Hub) handle(client *Client, msg models.Message) {
	switch msg.Type {
	case models.MessageJoinGroup:
		if !client.claims.CanJoin(msg.Group) {
			h.forbid(client, msg, "not allowed to join group")
			return
		}
		h.join(client, msg.Group)
		h.ack(client, msg.AckID, nil)

	case models.MessageLeaveGroup:
		h.leave(client, msg.Group)
		h.ack(client, msg.AckID, nil)

	case models.MessageSendToGroup:
		if !client.claims.CanSend(msg.Group) {
			h.forbid(client, msg, "not allowed to send to group")
			return
		}
		if !client.limiter.Allow() {
			log.Warn().Str("connection", client.ConnectionID).Str("group", msg.Group).Msg("relay client rate limited")
			h.ack(client, msg.AckID, &models.AckError{Name: models.AckRateLimited, Message: "too many messages"})
			return
		}
		if msg.DataType != "" && msg.DataType != models.DataTypeJSON {
			h.ack(client, msg.AckID, &models.AckError{Name: models.AckInvalidMessage, Message: "unsupported data type"})
			return
		}
		h.Broadcast(msg.Group, models.NewGroupMessage(msg.Group, client.UserID, msg.Data))
		h.ack(client, msg.AckID, nil)

	default:
		h.ack(client, msg.AckID, &models.AckError{Name: models.AckInvalidMessage, Message: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (h *Hub) forbid(client *Client, msg models.Message, reason string) {
	log.Warn().
		Str("user", client.UserID).
		Str("role", client.Role).
		Str("type", msg.Type).
		Str("group", msg.Group).
		Msg("relay request rejected")
	h.ack(client, msg.AckID, &models.AckError{Name: models.AckForbidden, Message: reason})
}

// ack 只有在用戶端提供 ackId 或發生錯誤時才回覆
func (h *Hub) ack(client *Client, ackID uint64, ackErr *models.AckError) {
	if ackID == 0 && ackErr == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.SendChan <- models.NewAck(ackID, ackErr):
	default:
	}
}

// writePump 處理向用戶端發送訊息與心跳
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast 發送給本機群組成員並轉送給其他實例
func (h *Hub) Broadcast(group string, msg models.Message) {
	h.Deliver(group, msg)

	h.bridgeMu.RLock()
	bridge := h.bridge
	h.bridgeMu.RUnlock()
	if bridge != nil {
		if err := bridge.Forward(group, msg); err != nil {
			log.Error().Err(err).Str("group", group).Msg("failed to forward relay message")
		}
	}
}

// Deliver 只發送給本機群組成員；消息佇列已滿的連線會被關閉
func (h *Hub) Deliver(group string, msg models.Message) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.groups[group] {
		select {
		case client.SendChan <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Warn().Str("connection", client.ConnectionID).Msg("relay client too slow, closing")
		client.Conn.Close()
	}
}

// Publish 讓伺服器以主持人的身份廣播完整狀態
func (h *Hub) Publish(_ context.Context, roomID string, st debate.RunState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	group := replica.Topic(roomID)
	h.Broadcast(group, models.NewGroupMessage(group, "server", data))
	return nil
}

// SendNotice 發送提示給房間的所有觀眾
func (h *Hub) SendNotice(roomID string, n debate.Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	group := replica.Topic(roomID)
	h.Broadcast(group, models.NewNoticeMessage(group, data))
	return nil
}

// GroupSize 取得群組的在線連線數量
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Close 關閉所有連線
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.Conn.Close()
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// removeClient 移除連線並關閉發送通道；發送都在讀鎖內進行，所以關閉後不會再有寫入
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	for group := range client.groups {
		h.leaveLocked(client, group)
	}
	delete(h.clients, client)
	close(client.SendChan)
}

func (h *Hub) join(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = true
}

func (h *Hub) leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, group)
}

func (h *Hub) leaveLocked(client *Client, group string) {
	delete(client.groups, group)
	if members, ok := h.groups[group]; ok {
		delete(members, client)
		// 如果群組空了，刪除群組
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}
