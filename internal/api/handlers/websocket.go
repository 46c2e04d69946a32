package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/relay"
	"debate_timer/internal/utils"
)

// 定義 WebSocket 升級器；存取權杖已經限制了可以加入的群組
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler 處理中繼 WebSocket 連接
type WebSocketHandler struct {
	hub    *relay.Hub
	tokens *utils.TokenManager
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(hub *relay.Hub, tokens *utils.TokenManager) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, tokens: tokens}
}

// HandleWebSocket 先驗證存取權杖，再升級為 WebSocket 連接
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	claims, err := h.tokens.ParseRelayToken(c.Query("access_token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.hub.HandleConnection(conn, claims)
}
