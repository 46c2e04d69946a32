package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_timer/internal/middleware"
	"debate_timer/internal/service"
)

// DebateHandler 處理由伺服器主持的辯論
type DebateHandler struct {
	debateService *service.DebateService
}

// NewDebateHandler 創建一個新的 DebateHandler 實例
func NewDebateHandler(debateService *service.DebateService) *DebateHandler {
	return &DebateHandler{debateService: debateService}
}

// StartDebate 處理開始辯論的請求
func (h *DebateHandler) StartDebate(c *gin.Context) {
	var input service.StartRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Config == nil && input.TemplateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "config or templateId is required"})
		return
	}

	view, err := h.debateService.Start(c.Request.Context(), c.Param("room"), middleware.ModeratorToken(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetDebate 處理取得辯論狀態的請求
func (h *DebateHandler) GetDebate(c *gin.Context) {
	view, err := h.debateService.State(c.Param("room"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Command 處理主持人的操作
func (h *DebateHandler) Command(c *gin.Context) {
	var cmd service.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.debateService.Command(c.Request.Context(), c.Param("room"), middleware.ModeratorToken(c), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StopDebate 處理結束辯論的請求
func (h *DebateHandler) StopDebate(c *gin.Context) {
	if err := h.debateService.Stop(c.Request.Context(), c.Param("room"), middleware.ModeratorToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
