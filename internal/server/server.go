package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/config"
	"taskhub/internal/events"
	"taskhub/internal/handler"
	"taskhub/internal/hub"
	"taskhub/internal/middleware"
	"taskhub/internal/migrations"
	"taskhub/internal/model"
	"taskhub/internal/relay"
	"taskhub/internal/repository"
	"taskhub/internal/rules"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
	Hub    *hub.Hub
	Queue  *events.Queue

	redis *redis.Client
	relay *relay.Relay
}

func Init(cfg *config.Config) (*Server, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:     db,
		Config: cfg,
		Hub:    hub.New(),
		Queue:  events.NewQueue(cfg.EventQueueSize),
	}

	if cfg.RedisAddr != "" {
		client, err := relay.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("❌ %w", err)
		}
		s.redis = client
		s.relay = relay.New(client, cfg.RedisChannel, s.Hub)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Initialize services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	engine := rules.NewEngine(rules.WithStrictTransitions(cfg.StrictStatusTransitions))
	taskService := service.NewTaskService(taskRepo, engine, s.Queue)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, tokens, cfg.CookieSecure)
	taskHandler := handler.NewTaskHandler(taskService)
	realtimeHandler := handler.NewRealtimeHandler(s.Hub, tokens, cfg.RealtimeAllowAnonymous, cfg.ClientBufferSize, cfg.CORSOrigins)
	healthHandler := handler.NewHealthHandler(db, s.Hub)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	r.GET("/health", healthHandler.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	// Public routes
	api.POST("/auth/register", userHandler.Register)
	api.POST("/auth/login", userHandler.Login)
	api.POST("/auth/logout", userHandler.Logout)

	// Live channel authenticates its own handshake
	api.GET("/ws", realtimeHandler.ServeWS)
	api.GET("/events", realtimeHandler.ServeSSE)

	// Protected routes - require authentication
	authorized := api.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(tokens))
	{
		authorized.GET("/auth/me", userHandler.Me)
		authorized.GET("/auth/users", userHandler.ListUsers)

		// Task routes
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks", taskHandler.List)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
	}

	s.Engine = r
	return s, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{TranslateError: true}

	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("❌ failed to open SQLite database: %w", err)
		}
		// one connection keeps ":memory:" databases shared and writes serialized
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("❌ failed to get SQLite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)

		if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
			return nil, fmt.Errorf("❌ failed to migrate SQLite database: %w", err)
		}
		log.Printf("✅ Connected to SQLite database at %s", cfg.SQLitePath)
		return db, nil

	case config.DriverPostgres:
		if err := migrations.Up(cfg.PostgresURL()); err != nil {
			return nil, fmt.Errorf("❌ failed to migrate DB: %w", err)
		}
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
		}
		log.Println("✅ Connected to database")
		return db, nil

	default:
		return nil, fmt.Errorf("❌ unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// StartWorkers runs the event dispatcher and, when configured, the Redis
// relay until ctx is cancelled. The dispatcher drains buffered events
// before its goroutine returns, and the relay publishes what they left.
func (s *Server) StartWorkers(ctx context.Context) *errgroup.Group {
	g, gctx := errgroup.WithContext(ctx)

	var sink events.Sink = s.Hub
	if s.relay != nil {
		sink = s.relay
		g.Go(func() error {
			s.relay.Forward()
			return nil
		})
		g.Go(func() error {
			// a lost relay leaves local delivery running
			if err := s.relay.Run(gctx); err != nil {
				log.Printf("[relay] ❌ %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		s.Queue.Run(gctx, sink)
		if s.relay != nil {
			// the dispatcher was the only caller of Deliver
			s.relay.CloseOutbox()
		}
		return nil
	})
	return g
}

// HTTPServer serves the engine. Shutdown closes every live subscription so
// SSE streams return instead of holding shutdown until its deadline.
func (s *Server) HTTPServer() *http.Server {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}
	srv.RegisterOnShutdown(s.Hub.Close)
	return srv
}

func (s *Server) Run() error {
	srv := s.HTTPServer()

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workers := s.StartWorkers(workersCtx)

	listenErr := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Println("🛑 Shutting down server...")
	case err := <-listenErr:
		runErr = fmt.Errorf("❌ Failed to listen: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %s", err)
	}

	// no request can publish any more; let the dispatcher drain
	stopWorkers()
	if err := workers.Wait(); err != nil {
		log.Printf("⚠️  Background worker stopped with error: %v", err)
	}
	s.Close()

	if runErr == nil {
		log.Println("✅ Server exited properly")
	}
	return runErr
}

// Close releases the database and Redis connections.
func (s *Server) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("[relay] Error closing Redis connection: %v", err)
		}
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
