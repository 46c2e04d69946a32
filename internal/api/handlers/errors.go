package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/debate"
	"debate_timer/internal/registry"
	"debate_timer/internal/service"
)

// respondError 把服務層的錯誤轉成 HTTP 狀態碼
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrRoomExists):
		status = http.StatusConflict
	case errors.Is(err, registry.ErrRoomNotFound),
		errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, debate.ErrTemplateUnknown),
		errors.Is(err, debate.ErrVariantUnknown):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidRoomID),
		errors.Is(err, debate.ErrInvalidConfig),
		errors.Is(err, debate.ErrInvalidState),
		errors.Is(err, service.ErrUnknownCommand),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrLocalRoom):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
