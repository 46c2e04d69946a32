package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_timer/internal/middleware"
	"debate_timer/internal/replica"
	"debate_timer/internal/service"
)

// NegotiateHandler 簽發中繼連線資訊
type NegotiateHandler struct {
	negotiateService *service.NegotiateService
}

// NewNegotiateHandler 創建一個新的 NegotiateHandler 實例
func NewNegotiateHandler(negotiateService *service.NegotiateService) *NegotiateHandler {
	return &NegotiateHandler{negotiateService: negotiateService}
}

// Negotiate 處理 GET /api/negotiate?room=&role=
func (h *NegotiateHandler) Negotiate(c *gin.Context) {
	roomID := c.Query("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room parameter is required"})
		return
	}

	n, err := h.negotiateService.Negotiate(
		c.Request.Context(),
		roomID,
		replica.Role(c.Query("role")),
		middleware.ModeratorToken(c),
		requestBaseURL(c.Request),
	)
	if err != nil {
		if errors.Is(err, service.ErrRelayUnavailable) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// requestBaseURL 推算用戶端看到的位址，支援反向代理的 X-Forwarded-Proto
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
