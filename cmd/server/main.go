package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/api"
	"github.com/edinai/classhub/internal/auth"
	"github.com/edinai/classhub/internal/config"
	"github.com/edinai/classhub/internal/db"
	"github.com/edinai/classhub/internal/genai"
	"github.com/edinai/classhub/internal/hub"
	"github.com/edinai/classhub/internal/middleware"
	"github.com/edinai/classhub/internal/observ"
	"github.com/edinai/classhub/internal/repository/postgres"
	"github.com/edinai/classhub/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no deadline; once serving, every request and socket
	// event carries its own context.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	rosterRepo := postgres.NewRosterStore(pool)
	chatRepo := postgres.NewChatStore(pool)
	lectureRepo := postgres.NewLectureStore(pool)
	userRepo := postgres.NewUserStore(pool)

	tokens := auth.NewService(cfg.JWTSecret)

	audioCache, err := genai.NewRedisCache(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer audioCache.Close()

	qaClient := genai.NewQAClient(cfg.QAAPIURL, cfg.QAAPIKey, cfg.QAModel, logger)
	speechClient := genai.NewSpeechClient(cfg.TTSAPIURL, cfg.TTSAPIKey, audioCache, logger)

	portal := hub.NewPortal(tokens, rosterRepo, chatRepo, logger)
	lectureHub := hub.NewLectureHub(staffResolver{tokens}, lectureRepo, qaClient, speechClient, logger)

	socketHandler := ws.NewHandler(portal, lectureHub, logger)
	authHandler := api.NewAuthHandler(userRepo, tokens, logger)
	chatHandler := api.NewChatHandler(chatRepo, rosterRepo, tokens, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Public: load balancers health-check this, and the sockets carry
	// their tokens in the handshake.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":              "ok",
			"portal_connections":  portal.ConnectionCount(),
			"lecture_connections": lectureHub.ConnectionCount(),
		})
	})
	srv.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv.GET("/ws/portal", socketHandler.PortalSocket)
	srv.GET("/ws/lecture", socketHandler.LectureSocket)

	srv.POST("/v1/auth/login", authHandler.Login)
	srv.GET("/v1/chat/threads/:peer", chatHandler.ListThread)

	// Staff-only REST group.
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(tokens))
	v1.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": middleware.GetUserID(c),
			"role":    middleware.GetRole(c),
		})
	})

	logger.Info("starting classhub",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return srv.Run(":" + cfg.Port)
}

// staffResolver adapts auth.Service to the lecture hub's resolver
// shape without the hub importing jwt claims.
type staffResolver struct {
	tokens *auth.Service
}

func (r staffResolver) ResolveRole(token string) (hub.RoleIdentity, error) {
	claims, err := r.tokens.ResolveRole(token)
	if err != nil {
		return hub.RoleIdentity{}, err
	}
	return hub.RoleIdentity{Role: claims.Role, UserID: claims.UserID.String()}, nil
}
