package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/fadilmartias/ticket-router/internal/routing"
	"github.com/fadilmartias/ticket-router/internal/search"
	"github.com/fadilmartias/ticket-router/internal/service"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Enqueuer schedules a (re)computation of an entity's vector.
type Enqueuer interface {
	Enqueue(kind model.EntityKind, id string) bool
}

// CorpusReader is the read side of the vector store used by searches.
type CorpusReader interface {
	GetText(ctx context.Context, kind model.EntityKind, id string) (string, error)
	GetVector(ctx context.Context, kind model.EntityKind, id string) ([]float32, error)
	ListEmbeddable(ctx context.Context, kind model.EntityKind) ([]model.EmbeddedEntity, error)
}

type RoutingUsecase struct {
	store    CorpusReader
	embedder service.EmbeddingServiceInterface
	queue    Enqueuer
	scorer   *routing.Scorer
	cfg      config.RoutingConfig

	queries  *lru.Cache[string, []float32]
	inflight singleflight.Group
}

func NewRoutingUsecase(store CorpusReader, embedder service.EmbeddingServiceInterface, queue Enqueuer, scorer *routing.Scorer, cfg config.RoutingConfig) (*RoutingUsecase, error) {
	uc := &RoutingUsecase{store: store, embedder: embedder, queue: queue, scorer: scorer, cfg: cfg}
	if cfg.QueryCacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.QueryCacheSize)
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		uc.queries = cache
	}
	return uc, nil
}

// RelatedForTicket returns the documents and other tickets closest to a
// ticket. A ticket whose vector is not stored yet is embedded on the spot
// and handed to the queue, which stays the only writer of vectors.
func (uc *RoutingUsecase) RelatedForTicket(ctx context.Context, ticketID string) (*model.RelatedItems, error) {
	vector, err := uc.store.GetVector(ctx, model.KindTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		text, err := uc.store.GetText(ctx, model.KindTicket, ticketID)
		if err != nil {
			return nil, err
		}
		key := model.EntityKey{Kind: model.KindTicket, ID: ticketID}.String()
		if vector, err = uc.embed(ctx, key, text, nil); err != nil {
			return nil, err
		}
		uc.queue.Enqueue(model.KindTicket, ticketID)
	}

	tickets, docs, err := uc.loadCorpora(ctx)
	if err != nil {
		return nil, err
	}
	others := make([]model.EmbeddedEntity, 0, len(tickets))
	for _, t := range tickets {
		if t.ID != ticketID {
			others = append(others, t)
		}
	}

	return &model.RelatedItems{
		TicketID:  ticketID,
		Tickets:   search.Search(vector, others, uc.cfg.TicketTopK, uc.cfg.TicketMinSimilarity),
		Documents: search.Search(vector, docs, uc.cfg.DocumentTopK, uc.cfg.DocumentMinSimilarity),
	}, nil
}

// SuggestForDescription routes a ticket that does not exist yet.
// service.ErrNotConfigured is returned as is so callers can degrade.
func (uc *RoutingUsecase) SuggestForDescription(ctx context.Context, description string) (*model.RoutingSuggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, service.ErrEmptyText
	}

	vector, err := uc.queryVector(ctx, description)
	if err != nil {
		return nil, err
	}
	tickets, docs, err := uc.loadCorpora(ctx)
	if err != nil {
		return nil, err
	}

	similarTickets := search.Search(vector, tickets, uc.cfg.TicketTopK, uc.cfg.TicketMinSimilarity)
	similarDocs := search.Search(vector, docs, uc.cfg.DocumentTopK, uc.cfg.DocumentMinSimilarity)
	suggestion := uc.scorer.SuggestRouting(ctx, description, similarTickets, similarDocs)
	return &suggestion, nil
}

func (uc *RoutingUsecase) queryVector(ctx context.Context, description string) ([]float32, error) {
	if uc.queries != nil {
		if v, ok := uc.queries.Get(description); ok {
			return v, nil
		}
	}
	return uc.embed(ctx, "query:"+description, description, func(v []float32) {
		if uc.queries != nil {
			uc.queries.Add(description, v)
		}
	})
}

// embed coalesces concurrent requests for the same key into one provider
// call. The shared call is detached from any single caller's context, so a
// caller that gives up does not fail the others; it is bounded by
// QueryEmbedTimeout instead. onSuccess runs once per provider call.
func (uc *RoutingUsecase) embed(ctx context.Context, key, text string, onSuccess func([]float32)) ([]float32, error) {
	ch := uc.inflight.DoChan(key, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		if uc.cfg.QueryEmbedTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, uc.cfg.QueryEmbedTimeout)
			defer cancel()
		}
		v, err := uc.embedder.GenerateEmbedding(callCtx, text)
		if err == nil && onSuccess != nil {
			onSuccess(v)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("embed %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("embed %s: %w", key, res.Err)
		}
		return res.Val.([]float32), nil
	}
}

func (uc *RoutingUsecase) loadCorpora(ctx context.Context) (tickets, docs []model.EmbeddedEntity, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickets, err = uc.store.ListEmbeddable(gctx, model.KindTicket)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = uc.store.ListEmbeddable(gctx, model.KindDocument)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	return tickets, docs, nil
}
