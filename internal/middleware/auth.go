package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_timer/internal/utils"
)

// ModeratorTokenKey 是主持人憑證在 gin.Context 中的鍵
const ModeratorTokenKey = "moderatorToken"

// ModeratorHeader 是 Authorization 以外另一個可以攜帶憑證的標頭
const ModeratorHeader = "X-Moderator-Token"

// ModeratorAuth 從請求頭中取出主持人憑證。
// 沒有憑證的請求照常進入 handler，由服務層決定是否需要；格式錯誤則直接拒絕。
func ModeratorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(ModeratorHeader); token != "" {
			c.Set(ModeratorTokenKey, token)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		token, ok := utils.BearerToken(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			c.Abort()
			return
		}
		c.Set(ModeratorTokenKey, token)
		c.Next()
	}
}

// ModeratorToken 取出 ModeratorAuth 設定的憑證
func ModeratorToken(c *gin.Context) string {
	return c.GetString(ModeratorTokenKey)
}
