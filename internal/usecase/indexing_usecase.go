package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fadilmartias/ticket-router/internal/model"
)

// IDLister enumerates every stored entity of a kind.
type IDLister interface {
	ListIDs(ctx context.Context, kind model.EntityKind) ([]string, error)
}

// IndexingUsecase is the trigger side of the embedding queue: entity
// mutations and bulk reindexing both end in Enqueue.
type IndexingUsecase struct {
	ids   IDLister
	queue Enqueuer
}

func NewIndexingUsecase(ids IDLister, queue Enqueuer) *IndexingUsecase {
	return &IndexingUsecase{ids: ids, queue: queue}
}

// NotifyChanged is called after a document or ticket has been created or its
// text edited. It never waits for the embedding.
func (uc *IndexingUsecase) NotifyChanged(kind model.EntityKind, id string) bool {
	return uc.queue.Enqueue(kind, id)
}

// ReindexAll enqueues every entity of the given kinds and returns how many
// were scheduled, counting those coalesced into an outstanding job.
func (uc *IndexingUsecase) ReindexAll(ctx context.Context, kinds ...model.EntityKind) (int, error) {
	total := 0
	for _, kind := range kinds {
		ids, err := uc.ids.ListIDs(ctx, kind)
		if err != nil {
			return total, fmt.Errorf("list %s ids: %w", kind, err)
		}
		queued := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if uc.queue.Enqueue(kind, id) {
				queued++
			}
			total++
		}
		slog.Info("reindex scheduled", "kind", kind, "entities", len(ids), "new_jobs", queued)
	}
	return total, nil
}
