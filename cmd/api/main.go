package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/analytics"
	"rollcall/internal/auth"
	"rollcall/internal/checkin"
	"rollcall/internal/clock"
	"rollcall/internal/config"
	"rollcall/internal/counts"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/memstore"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/store"
	"rollcall/internal/user"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// backends bundles the storage implementations selected by config.
type backends struct {
	sessions  session.Store
	checkins  checkin.Store
	users     user.Store
	analytics analytics.Store
	db        *store.DB // nil for the memory backend
}

func openBackends(cfg config.App) (backends, error) {
	if cfg.StoreBackend == "memory" {
		mem := memstore.New(cfg.TrackOrigin)
		return backends{
			sessions:  mem,
			checkins:  mem,
			users:     memstore.UserStore{Store: mem},
			analytics: mem,
		}, nil
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return backends{}, err
	}
	if err := db.EnsureSchema(context.Background(), cfg.TrackOrigin); err != nil {
		return backends{}, err
	}
	return backends{
		sessions:  session.NewPostgresStore(db.Client),
		checkins:  checkin.NewPostgresStore(db.Client),
		users:     user.NewPostgresStore(db.Client),
		analytics: analytics.NewPostgresStore(db.Client),
		db:        db,
	}, nil
}

func runHTTP(cfg config.App) error {
	be, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if be.db != nil {
			_ = be.db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:checkins")
	}

	clk := clock.Default{}
	sessions := session.NewService(be.sessions, clk)
	engine := checkin.NewEngine(be.sessions, be.checkins, clk, cfg.TrackOrigin)
	notifier := roster.NewNotifier(be.sessions, be.checkins, cfg.RosterInterval)
	users := user.NewService(be.users)
	stats := analytics.NewService(be.analytics, be.sessions, be.checkins)

	var countCache *counts.Cache
	if redisClient.Healthy(context.Background()) {
		countCache = counts.NewCache(redisClient.Client)
	} else {
		log.Println("redis not reachable, attendee count cache disabled")
	}

	h := handler.New(handler.Config{
		Users:         users,
		Sessions:      sessions,
		Engine:        engine,
		Notifier:      notifier,
		Checkins:      be.checkins,
		Analytics:     stats,
		Queue:         q,
		Counts:        countCache,
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := be.db == nil || be.db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", h.Register)
	r.POST("/v1/auth/login", h.Login)

	// Student-facing surface: no auth, but the check-in path is gated by the
	// per-IP window limiter before anything else runs.
	checkinLimiter := httpmiddleware.NewCheckinLimiter(redisClient.Client, cfg.CheckinRateLimit, cfg.CheckinRateWindow)
	r.POST("/v1/checkins", checkinLimiter.GinMiddleware(), h.SubmitCheckin)
	r.GET("/v1/sessions/:id", h.GetSession)
	r.GET("/v1/sessions/:id/qr", h.SessionQR)
	r.GET("/v1/sessions/:id/stream", h.StreamRoster)

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	authGroup.POST("/sessions", h.CreateSession)
	authGroup.GET("/sessions", h.ListSessions)
	authGroup.PATCH("/sessions/:id", h.PatchSession)
	authGroup.DELETE("/sessions/:id", h.DeleteSession)
	authGroup.GET("/analytics", h.Analytics)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // roster streams are long-lived
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
