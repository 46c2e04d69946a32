package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/api"
	"debate_timer/internal/debate"
	"debate_timer/internal/logger"
	"debate_timer/internal/models"
	"debate_timer/internal/registry"
	"debate_timer/internal/relay"
	"debate_timer/internal/repository"
	"debate_timer/internal/service"
	"debate_timer/internal/storage"
	"debate_timer/internal/utils"
	"debate_timer/pkg/config"
)

func main() {
	// .env 只在開發時存在
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logger")
	}

	clock := clockwork.NewRealClock()

	// 初始化房間登記
	reg, closeRegistry := newRegistry(cfg, clock)
	defer closeRegistry()

	// 初始化中繼，設定了 NATS 時與其他實例同步
	hub := relay.NewHub(relay.Options{RatePerSecond: cfg.Relay.RatePerSecond, Burst: cfg.Relay.Burst})
	defer hub.Close()
	if cfg.NATS.Enabled {
		instanceID := uuid.NewString()
		nc, err := relay.ConnectNATS(relay.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, "debate-timer-"+instanceID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()

		bridge, err := relay.NewNATSBridge(nc, hub, cfg.NATS.SubjectPrefix, instanceID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start NATS bridge")
		}
		defer bridge.Close()
	}

	// 初始化 services
	tokens := utils.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.RelayTTL, cfg.Auth.ModeratorTTL)
	services := service.NewServices(reg, hub, tokens, debate.DefaultCatalog(), clock, service.Options{
		RelayEnabled: cfg.Relay.Enabled,
		PublicURL:    cfg.Server.PublicURL,
	})
	defer services.Debate.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 定期清理閒置的房間，並停止其中的辯論
	janitor := registry.NewJanitor(reg, clock, cfg.Registry.RoomTTL, cfg.Registry.SweepInterval, services.Debate.Teardown).
		Also(services.Debate)
	go janitor.Run(ctx)

	// 設置 Gin 路由
	r := gin.New()
	r.Use(logger.GinLogger(), gin.Recovery(), cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	api.SetupRoutes(r, services)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}
	go func() {
		log.Info().Str("address", cfg.Server.Address).Str("registry", cfg.Registry.Driver).Bool("nats", cfg.NATS.Enabled).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// newRegistry 依設定選擇記憶體或 PostgreSQL 的房間登記
func newRegistry(cfg *config.Config, clock clockwork.Clock) (registry.Registry, func()) {
	if cfg.Registry.Driver != "postgres" {
		return registry.NewMemory(clock), func() {}
	}

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(storage.DSN(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port, cfg.DB.TimeZone))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(&models.Room{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to auto migrate database")
	}

	repos := repository.NewRepositories(db)
	return registry.NewStore(repos.Room, clock), func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", "X-Moderator-Token")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
