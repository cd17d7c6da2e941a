package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/plus-me/backend/internal/app"
	"github.com/plus-me/backend/internal/config"
	"github.com/plus-me/backend/internal/database"
	"github.com/plus-me/backend/internal/logging"
	"github.com/plus-me/backend/internal/notify"
	"github.com/plus-me/backend/internal/redis"
	"github.com/plus-me/backend/internal/server"
	goredis "github.com/redis/go-redis/v9"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupNotifier(cfg *config.Config) *notify.Notifier {
	var mail notify.MailSender
	if cfg.SMTPHost != "" && len(cfg.ReportMails) > 0 {
		sender, err := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, cfg.ReportMails)
		if err != nil {
			slog.Error("Failed to create mail sender", "error", err)
			os.Exit(1)
		}
		mail = sender
	}

	var chat notify.ChatSender
	if cfg.SlackWebhookURL != "" {
		chat = notify.NewSlackSender(cfg.SlackWebhookURL)
	}

	notifier, err := notify.New(mail, chat, cfg.ReportMailsActive, cfg.BaseURL)
	if err != nil {
		slog.Error("Failed to create report notifier", "error", err)
		os.Exit(1)
	}
	return notifier
}

// redisPinger adapts the go-redis client to the readiness-check interface.
type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	// Repositories
	userRepo := database.NewUserRepo(pool)
	questionRepo := database.NewQuestionRepo(pool)
	voteRepo := database.NewVoteRepo(pool, userRepo)
	answerRepo := database.NewAnswerRepo(pool)
	tagRepo := database.NewTagRepo(pool)

	// Collaborators
	limiter := redis.NewVoteRateLimiter(redisClient, clock, cfg.VoteRateCapacity, cfg.VoteRatePerMinute)
	dedupe := redis.NewReportDedupe(redisClient)
	notifier := setupNotifier(cfg)

	appSvc := app.NewService(userRepo, questionRepo, voteRepo, answerRepo, tagRepo, limiter, notifier, dedupe, clock)

	srv := server.NewServer(cfg, appSvc, pool, redisPinger{client: redisClient})

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
