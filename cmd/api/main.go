package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/kassandra-app/kassandra/internal/assessment"
	"github.com/kassandra-app/kassandra/internal/auth"
	"github.com/kassandra-app/kassandra/internal/catalog"
	"github.com/kassandra-app/kassandra/internal/config"
	"github.com/kassandra-app/kassandra/internal/core"
	"github.com/kassandra-app/kassandra/internal/database"
	"github.com/kassandra-app/kassandra/internal/guidance"
	httpServer "github.com/kassandra-app/kassandra/internal/http"
	"github.com/kassandra-app/kassandra/internal/identity"
	"github.com/kassandra-app/kassandra/internal/logging"
	"github.com/kassandra-app/kassandra/internal/ratelimit"
	"github.com/kassandra-app/kassandra/internal/session"
)

// @title           Kassandra API
// @version         1.0
// @description     Personality quiz backend: session identities, assessment progression, and cooldown-gated guidance.

// @host      localhost:8080
// @BasePath  /

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.CreateTables(context.Background(), db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := identity.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	answerRepo := assessment.NewRepository(db)
	guidanceRepo := guidance.NewRepository(db)
	tokenRepo := session.NewRedisRepository(redisClient, cfg.Auth.SessionTokenDuration)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize PASETO service
	pasetoService, err := auth.NewPasetoService(cfg.Auth.PasetoKey)
	if err != nil {
		return fmt.Errorf("failed to initialize PASETO service: %w", err)
	}

	// Initialize services
	identityService := identity.NewService(userRepo)
	assessmentService := assessment.NewService(answerRepo, catalogRepo, userRepo)
	guidanceService := guidance.NewService(guidanceRepo, answerRepo, userRepo, logger, cfg.Guidance.Cooldown)
	sessionResolver := session.NewResolver(tokenRepo, userRepo)

	strategy, err := auth.NewStrategy(cfg.Auth.Strategy, userRepo)
	if err != nil {
		return fmt.Errorf("failed to initialize auth strategy: %w", err)
	}
	authService := auth.NewService(strategy, pasetoService, logger, cfg.Auth.AccessTokenDuration)

	engine := core.NewEngine(sessionResolver, assessmentService, guidanceService, identityService, catalogRepo)

	// Initialize HTTP handlers
	handler := httpServer.NewHandler(engine, authService, guidance.TemplateGenerator{}, rateLimiter, logger)
	sessionMiddleware := httpServer.NewSessionMiddleware(engine, pasetoService, cfg.Auth.SessionTokenDuration, !cfg.Server.IsDevelopment())

	// Initialize router
	router := httpServer.NewRouter(cfg, handler, sessionMiddleware, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Background sweep of abandoned anonymous users. Failures are logged
	// only; they never surface to request handling.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runPurgeSweep(sweepCtx, engine, cfg.Purge, logger)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// runPurgeSweep deletes dataless, inactive anonymous users on an interval
func runPurgeSweep(ctx context.Context, engine *core.Engine, cfg config.PurgeConfig, logger *logging.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := engine.PurgeAbandoned(ctx, cfg.Threshold)
			if err != nil {
				logger.Warn("purge sweep failed", "error", err)
				continue
			}
			if count > 0 {
				logger.Info("purged abandoned anonymous users", "count", count)
			}
		}
	}
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	// Create Bun DB wrapper
	db := bun.NewDB(sqlDB, pgdialect.New())

	return db, nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
