package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/accounts-api/api/swagger"
	"github.com/noah-isme/accounts-api/internal/handler"
	"github.com/noah-isme/accounts-api/internal/middleware"
	"github.com/noah-isme/accounts-api/internal/repository"
	"github.com/noah-isme/accounts-api/internal/service"
	"github.com/noah-isme/accounts-api/internal/token"
	"github.com/noah-isme/accounts-api/pkg/cache"
	"github.com/noah-isme/accounts-api/pkg/config"
	"github.com/noah-isme/accounts-api/pkg/database"
	"github.com/noah-isme/accounts-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/accounts-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/accounts-api/pkg/middleware/requestid"
)

// @title Accounts API
// @version 1.0.0
// @description Authentication and session lifecycle service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional; without it revocation falls back to the session
	// store alone.
	blacklistRepo := repository.NewBlacklistRepository(nil, logr)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, token blacklist disabled", zap.Error(err))
		} else {
			blacklistRepo = repository.NewBlacklistRepository(redisClient, logr)
		}
	}
	defer blacklistRepo.Close() //nolint:errcheck

	userRepo := repository.NewUserRepository(db)
	authMethodRepo := repository.NewAuthMethodRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	codec := token.NewCodec(cfg.JWT)
	metricsSvc := service.NewMetricsService()
	sessionSvc := service.NewSessionService(sessionRepo, logr)
	methodSvc := service.NewAuthMethodService(authMethodRepo, userRepo, logr)
	authSvc := service.NewAuthService(userRepo, methodSvc, sessionSvc, codec, blacklistRepo, nil, logr)
	userSvc := service.NewUserService(userRepo, sessionSvc, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc, metricsSvc, cfg)
	sessionHandler := handler.NewSessionHandler(authSvc, metricsSvc)
	oauthHandler := handler.NewOAuthHandler(authSvc, authHandler, cfg, logr)
	userHandler := handler.NewUserHandler(userSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg, codec, blacklistRepo, authHandler, sessionHandler, oauthHandler, userHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepExpiredSessions(ctx, sessionSvc, cfg.Sessions.CleanupInterval, logr)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// sweepExpiredSessions periodically marks lapsed sessions revoked so the
// sessions list stays tidy. Expiry is enforced at validation time either way.
func sweepExpiredSessions(ctx context.Context, sessions *service.SessionService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.CleanupExpired(ctx); err != nil {
				logr.Warn("expired session sweep failed", zap.Error(err))
			}
		}
	}
}
