package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/database"
	"github.com/fadilmartias/ticket-router/internal/logging"
	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/fadilmartias/ticket-router/internal/queue"
	"github.com/fadilmartias/ticket-router/internal/repository"
	"github.com/fadilmartias/ticket-router/internal/service"
	"github.com/fadilmartias/ticket-router/internal/usecase"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type reindexOptions struct {
	timeout time.Duration
	workers int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := reindexOptions{}
	cmd := &cobra.Command{
		Use:   "reindex [documents|tickets|all]",
		Short: "Recompute embeddings for every document and/or ticket",
		Long: `Enqueue every stored entity of the given kind for embedding and wait
until the queue has drained.

Examples:
  reindex all
  reindex tickets --workers 8 --timeout 1h`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			kinds, err := parseKinds(target)
			if err != nil {
				return err
			}
			return runReindex(cmd.Context(), kinds, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Minute, "maximum time to wait for the queue to drain")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "embedding workers (defaults to EMBEDDING_WORKERS)")
	return cmd
}

func parseKinds(target string) ([]model.EntityKind, error) {
	if target == "all" {
		return model.Kinds, nil
	}
	kind, err := model.ParseEntityKind(target)
	if err != nil {
		return nil, fmt.Errorf("expected documents, tickets or all: %w", err)
	}
	return []model.EntityKind{kind}, nil
}

func runReindex(parent context.Context, kinds []model.EntityKind, opts reindexOptions) error {
	if err := godotenv.Load(); err != nil {
		slog.Info("could not load .env file")
	}
	appConfig := config.LoadAppConfig()
	logging.Init(appConfig.IsProduction(), logging.ParseLevel(appConfig.LogLevel))

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect()
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	embedder, err := service.NewEmbeddingService(ctx)
	if err != nil {
		return err
	}
	// A reindex without a provider would only produce terminal failures.
	if _, ok := embedder.(service.UnconfiguredService); ok {
		return service.ErrNotConfigured
	}

	queueConfig := *config.LoadQueueConfig()
	if opts.workers > 0 {
		queueConfig.Workers = opts.workers
	}
	store := repository.NewVectorStoreRepository(db)
	embeddingQueue := queue.NewEmbeddingQueue(store, embedder, queueConfig)
	embeddingQueue.Start()

	started := time.Now()
	total, err := usecase.NewIndexingUsecase(store, embeddingQueue).ReindexAll(ctx, kinds...)
	if err == nil {
		waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		err = embeddingQueue.Wait(waitCtx)
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), queueConfig.AttemptTimeout)
	defer cancel()
	if serr := embeddingQueue.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, serr)
	}

	s := embeddingQueue.Stats()
	slog.Info("reindex finished",
		"entities", total,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	if s.Failed > 0 {
		return fmt.Errorf("reindex: %d of %d embeddings failed", s.Failed, total)
	}
	return nil
}
