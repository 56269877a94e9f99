package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/fadilmartias/ticket-router/internal/repository"
	"github.com/fadilmartias/ticket-router/internal/routing"
	"github.com/fadilmartias/ticket-router/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	texts   map[model.EntityKey]string
	vectors map[model.EntityKey][]float32
	corpus  map[model.EntityKind][]model.EmbeddedEntity
	ids     map[model.EntityKind][]string
	listErr error
}

func (f *fakeStore) GetText(_ context.Context, kind model.EntityKind, id string) (string, error) {
	text, ok := f.texts[model.EntityKey{Kind: kind, ID: id}]
	if !ok {
		return "", repository.ErrEntityNotFound
	}
	return text, nil
}

func (f *fakeStore) GetVector(_ context.Context, kind model.EntityKind, id string) ([]float32, error) {
	key := model.EntityKey{Kind: kind, ID: id}
	if _, ok := f.texts[key]; !ok {
		return nil, repository.ErrEntityNotFound
	}
	return f.vectors[key], nil
}

func (f *fakeStore) ListEmbeddable(_ context.Context, kind model.EntityKind) ([]model.EmbeddedEntity, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.corpus[kind], nil
}

func (f *fakeStore) ListIDs(_ context.Context, kind model.EntityKind) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids[kind], nil
}

type fakeEmbedder struct {
	calls  atomic.Int32
	vector []float32
	err    error
	delay  time.Duration
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, _ string) ([]float32, error) {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	keys []model.EntityKey
	seen map[model.EntityKey]bool
}

func (f *fakeQueue) Enqueue(kind model.EntityKind, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.EntityKey{Kind: kind, ID: id}
	f.keys = append(f.keys, key)
	if f.seen == nil {
		f.seen = make(map[model.EntityKey]bool)
	}
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

func ptr(s string) *string { return &s }

func corpusEntity(kind model.EntityKind, id, dept, assignee string, vec ...float32) model.EmbeddedEntity {
	e := model.EmbeddedEntity{Kind: kind, ID: id, Title: id, Vector: vec, VectorUpdatedAt: time.Unix(0, 0)}
	if dept != "" {
		e.DepartmentID = ptr(dept)
	}
	if assignee != "" {
		e.AssignedTo = ptr(assignee)
	}
	return e
}

func testStore() *fakeStore {
	return &fakeStore{
		texts: map[model.EntityKey]string{
			{Kind: model.KindTicket, ID: "t1"}: "VPN drops\n\nEvery hour",
			{Kind: model.KindTicket, ID: "t2"}: "VPN slow",
			{Kind: model.KindTicket, ID: "new"}: "VPN again",
		},
		vectors: map[model.EntityKey][]float32{
			{Kind: model.KindTicket, ID: "t1"}: {1, 0},
			{Kind: model.KindTicket, ID: "t2"}: {0.9, 0.1},
		},
		corpus: map[model.EntityKind][]model.EmbeddedEntity{
			model.KindTicket: {
				corpusEntity(model.KindTicket, "t1", "net", "u1", 1, 0),
				corpusEntity(model.KindTicket, "t2", "net", "u2", 0.9, 0.1),
				corpusEntity(model.KindTicket, "t3", "hr", "u3", 0, 1),
			},
			model.KindDocument: {
				corpusEntity(model.KindDocument, "d1", "", "", 1, 0.2),
				corpusEntity(model.KindDocument, "d2", "", "", -1, 0),
			},
		},
		ids: map[model.EntityKind][]string{
			model.KindTicket:   {"t1", "t2", "t3"},
			model.KindDocument: {"d1", "d2"},
		},
	}
}

func newRouting(t *testing.T, store *fakeStore, embedder *fakeEmbedder, queue *fakeQueue) *RoutingUsecase {
	t.Helper()
	cfg := config.RoutingConfig{
		Weights:               config.DefaultScoringWeights(),
		TicketTopK:            10,
		DocumentTopK:          5,
		TicketMinSimilarity:   0.5,
		DocumentMinSimilarity: 0.3,
		QueryCacheSize:        8,
		QueryEmbedTimeout:     time.Second,
	}
	uc, err := NewRoutingUsecase(store, embedder, queue, routing.NewScorer(nil, cfg.Weights), cfg)
	require.NoError(t, err)
	return uc
}

func TestRelatedForTicketExcludesItself(t *testing.T) {
	embedder := &fakeEmbedder{}
	queue := &fakeQueue{}
	uc := newRouting(t, testStore(), embedder, queue)

	got, err := uc.RelatedForTicket(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, "t1", got.TicketID)
	require.Len(t, got.Tickets, 1)
	assert.Equal(t, "t2", got.Tickets[0].ID)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "d1", got.Documents[0].ID)
	assert.Zero(t, embedder.calls.Load())
	assert.Empty(t, queue.keys)
}

func TestRelatedForTicketEmbedsOnDemand(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	queue := &fakeQueue{}
	uc := newRouting(t, testStore(), embedder, queue)

	got, err := uc.RelatedForTicket(context.Background(), "new")

	require.NoError(t, err)
	assert.Len(t, got.Tickets, 2)
	assert.EqualValues(t, 1, embedder.calls.Load())
	assert.Equal(t, []model.EntityKey{{Kind: model.KindTicket, ID: "new"}}, queue.keys)
}

func TestRelatedForTicketNotConfigured(t *testing.T) {
	queue := &fakeQueue{}
	uc := newRouting(t, testStore(), &fakeEmbedder{err: service.ErrNotConfigured}, queue)

	_, err := uc.RelatedForTicket(context.Background(), "new")

	assert.ErrorIs(t, err, service.ErrNotConfigured)
	assert.Empty(t, queue.keys)
}

func TestRelatedForTicketMissing(t *testing.T) {
	uc := newRouting(t, testStore(), &fakeEmbedder{}, &fakeQueue{})

	_, err := uc.RelatedForTicket(context.Background(), "ghost")

	assert.ErrorIs(t, err, repository.ErrEntityNotFound)
}

func TestRelatedForTicketCorpusError(t *testing.T) {
	store := testStore()
	store.listErr = errors.New("db down")
	uc := newRouting(t, store, &fakeEmbedder{}, &fakeQueue{})

	_, err := uc.RelatedForTicket(context.Background(), "t1")

	assert.ErrorContains(t, err, "db down")
}

func TestSuggestForDescription(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0.05}}
	uc := newRouting(t, testStore(), embedder, &fakeQueue{})

	got, err := uc.SuggestForDescription(context.Background(), "  VPN keeps dropping  ")

	require.NoError(t, err)
	require.NotNil(t, got.DepartmentID)
	assert.Equal(t, "net", *got.DepartmentID)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, "u1", *got.AssigneeID)
	assert.Len(t, got.RelatedTickets, 2)
	assert.Len(t, got.RelatedDocs, 1)
	assert.Equal(t, "Suggested based on 2 similar tickets and 1 related document", got.Reason)
	assert.Greater(t, got.Confidence, 0.5)
	assert.LessOrEqual(t, got.Confidence, 0.95)
}

func TestSuggestForDescriptionCachesQueryVector(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	uc := newRouting(t, testStore(), embedder, &fakeQueue{})

	for i := 0; i < 3; i++ {
		_, err := uc.SuggestForDescription(context.Background(), "printer jam")
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1, embedder.calls.Load())
}

func TestSuggestForDescriptionCoalescesConcurrentEmbeds(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}, delay: 50 * time.Millisecond}
	uc := newRouting(t, testStore(), embedder, &fakeQueue{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.SuggestForDescription(context.Background(), "printer jam")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, embedder.calls.Load(), int32(2))
}

func TestSuggestForDescriptionLeaderTimeoutDoesNotFailWaiters(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}, delay: 100 * time.Millisecond}
	uc := newRouting(t, testStore(), embedder, &fakeQueue{})

	leaderCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := uc.SuggestForDescription(leaderCtx, "printer jam")
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return embedder.calls.Load() == 1 }, time.Second, time.Millisecond)

	got, err := uc.SuggestForDescription(context.Background(), "printer jam")

	require.NoError(t, err)
	assert.NotNil(t, got.DepartmentID)
	assert.ErrorIs(t, <-leaderErr, context.DeadlineExceeded)
	assert.EqualValues(t, 1, embedder.calls.Load())
}

func TestSuggestForDescriptionCachesAfterLeaderGivesUp(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}, delay: 50 * time.Millisecond}
	uc := newRouting(t, testStore(), embedder, &fakeQueue{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := uc.SuggestForDescription(ctx, "printer jam")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		_, ok := uc.queries.Get("printer jam")
		return ok
	}, time.Second, 5*time.Millisecond)
	_, err = uc.SuggestForDescription(context.Background(), "printer jam")
	require.NoError(t, err)
	assert.EqualValues(t, 1, embedder.calls.Load())
}

func TestRejectedProviderKeyIsNotConfigured(t *testing.T) {
	rejected := &service.ProviderError{
		Provider: "openrouter",
		Err:      fmt.Errorf("%w: credentials rejected: status 401: No auth credentials found", service.ErrNotConfigured),
	}
	uc := newRouting(t, testStore(), &fakeEmbedder{err: rejected}, &fakeQueue{})

	_, err := uc.SuggestForDescription(context.Background(), "vpn")
	assert.ErrorIs(t, err, service.ErrNotConfigured)

	_, err = uc.RelatedForTicket(context.Background(), "new")
	assert.ErrorIs(t, err, service.ErrNotConfigured)
}

func TestSuggestForDescriptionEmptyCorpus(t *testing.T) {
	store := &fakeStore{}
	uc := newRouting(t, store, &fakeEmbedder{vector: []float32{1, 0}}, &fakeQueue{})

	got, err := uc.SuggestForDescription(context.Background(), "anything")

	require.NoError(t, err)
	assert.Nil(t, got.DepartmentID)
	assert.Zero(t, got.Confidence)
	assert.Contains(t, got.Reason, "No similar")
}

func TestSuggestForDescriptionErrors(t *testing.T) {
	uc := newRouting(t, testStore(), &fakeEmbedder{err: service.ErrNotConfigured}, &fakeQueue{})

	_, err := uc.SuggestForDescription(context.Background(), "vpn")
	assert.ErrorIs(t, err, service.ErrNotConfigured)

	_, err = uc.SuggestForDescription(context.Background(), "   ")
	assert.ErrorIs(t, err, service.ErrEmptyText)
}

func TestNotifyChanged(t *testing.T) {
	queue := &fakeQueue{}
	uc := NewIndexingUsecase(testStore(), queue)

	assert.True(t, uc.NotifyChanged(model.KindDocument, "d1"))
	assert.False(t, uc.NotifyChanged(model.KindDocument, "d1"))
	assert.Len(t, queue.keys, 2)
}

func TestReindexAll(t *testing.T) {
	queue := &fakeQueue{}
	uc := NewIndexingUsecase(testStore(), queue)
	uc.NotifyChanged(model.KindTicket, "t2")

	n, err := uc.ReindexAll(context.Background(), model.Kinds...)

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Contains(t, queue.keys, model.EntityKey{Kind: model.KindDocument, ID: "d2"})
	assert.Contains(t, queue.keys, model.EntityKey{Kind: model.KindTicket, ID: "t3"})
}

func TestReindexAllErrors(t *testing.T) {
	store := testStore()
	store.listErr = errors.New("db down")
	_, err := NewIndexingUsecase(store, &fakeQueue{}).ReindexAll(context.Background(), model.KindTicket)
	assert.ErrorContains(t, err, "db down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewIndexingUsecase(testStore(), &fakeQueue{}).ReindexAll(ctx, model.KindTicket)
	assert.ErrorIs(t, err, context.Canceled)
}
