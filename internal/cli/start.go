package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/files"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logging"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokens(cfg.Auth.Secret, config.TTLDuration(cfg.Auth.TTL, 24*time.Hour))
	if err != nil {
		return err
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var archive app.ResultArchive = memory.NewResultArchive()
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
		archive = postgres.NewResultArchive(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var store app.SessionRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		redisStore := infraredis.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), logger)
		defer redisStore.Close()
		store = redisStore
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		store = memory.NewSessionStore()
	}

	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:" + cfg.Server.Port
	}
	csvStore, err := files.NewCSVStore(cfg.Results.Dir, strings.TrimRight(publicURL, "/")+"/results")
	if err != nil {
		return err
	}

	service := app.NewSessionService(store, quizRepo, app.Options{
		Countdown:        config.TTLDuration(cfg.Session.Countdown, app.DefaultCountdown),
		MaxActivePerQuiz: cfg.Session.MaxActivePerQuiz,
		MaxAutoStart:     cfg.Session.MaxAutoStart,
		Logger:           logger,
		Archive:          archive,
		Artifacts:        csvStore,
	})

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: transport.NewRouter(transport.RouterConfig{
			Service:    service,
			Tokens:     tokens,
			Logger:     logger,
			ResultsDir: csvStore.Dir(),
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", "addr", server.Addr, "run_id", service.RunID())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuizzes seeds the in-memory loader when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			OwnerID:     "demo-owner",
			Name:        "Warm-up",
			Description: "Two quick questions",
			Questions: []domain.Question{
				{
					ID:       1,
					Prompt:   "What is 2 + 2?",
					Duration: 10,
					Points:   5,
					Answers: []domain.Answer{
						{ID: 1, Text: "3", Colour: "red"},
						{ID: 2, Text: "4", Colour: "blue", Correct: true},
						{ID: 3, Text: "5", Colour: "green"},
					},
				},
				{
					ID:       2,
					Prompt:   "Which of these are primes?",
					Duration: 20,
					Points:   10,
					Answers: []domain.Answer{
						{ID: 1, Text: "2", Colour: "red", Correct: true},
						{ID: 2, Text: "4", Colour: "blue"},
						{ID: 3, Text: "7", Colour: "yellow", Correct: true},
					},
				},
			},
		},
	}
}
