package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MevanWeerasinghe/quiz-app/internal/app"
	"github.com/MevanWeerasinghe/quiz-app/internal/config"
	"github.com/MevanWeerasinghe/quiz-app/internal/genai"
	"github.com/MevanWeerasinghe/quiz-app/internal/infra/memory"
	pgstore "github.com/MevanWeerasinghe/quiz-app/internal/infra/postgres"
	redisinfra "github.com/MevanWeerasinghe/quiz-app/internal/infra/redis"
	transport "github.com/MevanWeerasinghe/quiz-app/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz server",
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

	log := newLogger(cfg.Log.Level)

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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	quizTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var backing memory.Backing
	var submissionRepo app.SubmissionRepository
	if pool != nil {
		store := pgstore.NewStore(pool)
		backing = store
		submissionRepo = store
	} else {
		backing = memory.NewQuizStore()
		submissionRepo = memory.NewSubmissionStore()
	}

	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, backing, quizTTL)
	} else {
		quizRepo = memory.NewCachedQuizRepository(backing, quizTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	quizService := app.NewQuizService(quizRepo)
	submissionService := app.NewSubmissionService(quizRepo, submissionRepo)
	attemptService := app.NewAttemptService(sessions, quizRepo, submissionService)
	generator := genai.NewClient(cfg.GenAI.BaseURL, cfg.GenAI.APIKey)

	api := transport.NewAPI(quizService, submissionService, generator, log)
	wsHandler := transport.NewWSHandler(attemptService, log)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws/attempt", wsHandler.ServeAttempt)
	r.Mount("/api", api.Routes())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{
		DisableLevelTruncation: true,
		PadLevelText:           true,
		TimestampFormat:        "2006/01/02 15:04:05",
		FullTimestamp:          true,
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
