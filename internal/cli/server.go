package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-ranking-service/internal/app"
	"quiz-ranking-service/internal/config"
	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/infra/memory"
	pginfra "quiz-ranking-service/internal/infra/postgres"
	redisinfra "quiz-ranking-service/internal/infra/redis"
	"quiz-ranking-service/internal/lib/logging"
	transport "quiz-ranking-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the ranking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, slog.LevelInfo)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	profileTTL := config.TTLDuration(cfg.Profile.TTL, 10*time.Minute)

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	var catalog app.QuizCatalog
	if redisClient != nil {
		catalog = redisinfra.NewQuizCatalog(redisClient, loader, quizTTL)
	} else {
		catalog = memory.NewQuizCatalog(loader, quizTTL)
	}

	var aggregates app.AggregateStore = memory.NewAggregateStore()
	if redisClient != nil {
		aggregates = redisinfra.NewAggregateStore(redisClient)
	}

	var attempts app.AttemptLog = memory.NewAttemptLog()
	if pool != nil {
		attempts = pginfra.NewAttemptLog(pool)
	}

	var topScores app.TopScoreStore = memory.NewTopScoreStore()
	if redisClient != nil {
		topScores = redisinfra.NewTopScoreStore(redisClient)
	}

	var profiles app.ProfileResolver = memory.NewProfiles()
	if pool != nil {
		profiles = memory.NewCachedProfiles(pginfra.NewProfiles(pool), profileTTL)
	}

	service := app.NewRankingService(aggregates, attempts, topScores, profiles, catalog,
		app.WithLogger(log),
		app.WithMaxRetries(cfg.Leaderboard.MaxRetries),
		app.WithBoardLimit(cfg.Leaderboard.Limit),
	)
	wsHandler := transport.NewWSHandler(service, log)
	api := transport.NewAPI(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/leaderboard", api.Leaderboard)
	mux.HandleFunc("/quizzes", api.Quizzes)
	mux.HandleFunc("/top", api.TopScores)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting ranking service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the catalog when no Postgres is configured; swap in the
// document-DB-backed loader in production.
func sampleQuizzes() []domain.Quiz {
	now := time.Now().UTC()
	return []domain.Quiz{
		{
			ID:               "quiz-1",
			Title:            "General Knowledge",
			Description:      "A bit of everything",
			Difficulty:       "easy",
			Active:           true,
			TimeLimitSeconds: 60,
			UpdatedAt:        now,
		},
		{
			ID:               "quiz-2",
			Title:            "Science",
			Description:      "Physics, chemistry, biology",
			Difficulty:       "medium",
			Active:           true,
			TimeLimitSeconds: 90,
			UpdatedAt:        now.Add(-time.Hour),
		},
	}
}
