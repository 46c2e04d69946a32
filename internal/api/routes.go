package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_timer/internal/api/handlers"
	"debate_timer/internal/middleware"
	"debate_timer/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.Room)
	negotiateHandler := handlers.NewNegotiateHandler(services.Negotiate)
	debateHandler := handlers.NewDebateHandler(services.Debate)
	templateHandler := handlers.NewTemplateHandler(services.Catalog)
	wsHandler := handlers.NewWebSocketHandler(services.Hub, services.Tokens)

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	api := r.Group("/api")

	// 公開路由
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		api.GET("/templates", templateHandler.ListTemplates)
		api.GET("/templates/:id", templateHandler.GetTemplate)

		// 中繼連線以存取權杖驗證，不經過主持人憑證
		api.GET("/relay/ws", wsHandler.HandleWebSocket)
	}

	// 可能需要主持人憑證的路由，憑證由服務層依房間驗證
	moderated := api.Group("/")
	moderated.Use(middleware.ModeratorAuth())
	{
		moderated.GET("/negotiate", negotiateHandler.Negotiate)

		rooms := moderated.Group("/rooms")
		{
			rooms.GET("", roomHandler.CheckRoom)
			rooms.POST("", roomHandler.CreateRoom)
			rooms.PUT("", roomHandler.UpdateRoom)
			rooms.DELETE("", roomHandler.DeleteRoom)
		}

		debates := moderated.Group("/debates")
		{
			debates.POST("/:room", debateHandler.StartDebate)
			debates.GET("/:room", debateHandler.GetDebate)
			debates.POST("/:room/commands", debateHandler.Command)
			debates.DELETE("/:room", debateHandler.StopDebate)
		}
	}
}
