package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_timer/internal/debate"
	"debate_timer/internal/middleware"
	"debate_timer/internal/service"
)

// RoomHandler 處理房間登記相關的請求
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

type roomInput struct {
	RoomID      string           `json:"roomId" binding:"required"`
	DebateState *debate.RunState `json:"debateState"`
}

// CheckRoom 處理查詢房間是否存在的請求
func (h *RoomHandler) CheckRoom(c *gin.Context) {
	roomID := c.Query("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room parameter is required"})
		return
	}

	status, err := h.roomService.CheckRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CreateRoom 處理創建新房間的請求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input roomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.roomService.CreateRoom(c.Request.Context(), input.RoomID, input.DebateState)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"success": true}
	if token != "" {
		resp["moderatorToken"] = token
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateRoom 處理更新房間快照的請求
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	var input roomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.DebateState == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debateState is required"})
		return
	}

	err := h.roomService.UpdateSnapshot(c.Request.Context(), input.RoomID, middleware.ModeratorToken(c), *input.DebateState)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteRoom 處理刪除房間的請求，房間不存在時也回傳成功
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID := c.Query("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room parameter is required"})
		return
	}

	if err := h.roomService.DeleteRoom(c.Request.Context(), roomID, middleware.ModeratorToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
