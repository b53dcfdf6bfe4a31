package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pocketmemory/config"
	"pocketmemory/config/database"
	"pocketmemory/internal/capture"
	"pocketmemory/internal/document/repository"
	"pocketmemory/internal/document/service"
	"pocketmemory/internal/mutation"
	"pocketmemory/internal/resolve"
	"pocketmemory/internal/resolve/gemini"
	"pocketmemory/pkg/logger"
	"pocketmemory/router"
	"pocketmemory/socket"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg    *config.Config
		memory bool
	)

	root := &cobra.Command{
		Use:           "pocketmemory",
		Short:         "Notes and lists you edit by saying what you want",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "config:", err)
				return err
			}
			logger.Init(c.LogLevel)
			cfg = c
			return nil
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runServe(cmd.Context(), cfg, memory)
			if err != nil {
				logger.Sugar.Errorf("Server stopped: %v", err)
			}
			return err
		},
	}
	serve.Flags().BoolVar(&memory, "memory", false, "keep documents in memory instead of Postgres")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				logger.Sugar.Error(err)
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				logger.Sugar.Error(err)
				return err
			}
			logger.Sugar.Info("Schema is up to date")
			return nil
		},
	}

	root.AddCommand(serve, migrate)
	// serve is the default command.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func runServe(ctx context.Context, cfg *config.Config, memory bool) error {
	var repo service.Repository
	if memory {
		logger.Sugar.Warn("Using in-memory document store; data is lost on exit")
		repo = repository.NewMemoryRepository()
	} else {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		repo = repository.NewDocumentRepository(db)
	}

	if cfg.JWTSecret == "" {
		logger.Sugar.Warn("JWT_SECRET is not set; every authenticated request will be rejected")
	}

	model, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.Resolver.Model, cfg.Resolver.MaxOutputTokens, cfg.Resolver.ThinkingBudget)
	if err != nil {
		return err
	}

	hub := socket.NewHub()
	engine := mutation.NewEngine(repo, logger.Log.Named("mutation"))
	docs := service.NewDocumentService(repo, engine, hub)
	loop := resolve.NewLoop(model, resolve.Config{
		MaxRounds:       cfg.Resolver.MaxRounds,
		SuspicionRounds: cfg.Resolver.SuspicionRounds,
	}, logger.Log.Named("resolve"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(docs, capture.NewHandler(loop, model, docs), hub, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Sugar.Infof("Backend listening on :%s (model %s)", cfg.Port, cfg.Resolver.Model)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
