package search

import (
	"math/rand"
	"testing"
	"time"

	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(id string, vec ...float32) model.EmbeddedEntity {
	return model.EmbeddedEntity{Kind: model.KindTicket, ID: id, Title: "ticket " + id, Vector: vec}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestSimilarityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a := make([]float32, 8)
		b := make([]float32, 8)
		for j := range a {
			a[j] = rng.Float32()*2 - 1
			b[j] = rng.Float32()*2 - 1
		}
		s := Similarity(a, b)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		assert.InDelta(t, 1.0, Similarity(a, a), 1e-9)
	}
	assert.Equal(t, 0.0, Similarity([]float32{1, 0}, []float32{-1, 0}))
}

func TestSearchTopK(t *testing.T) {
	corpus := []model.EmbeddedEntity{
		entity("far", 0, 1),
		entity("near", 1, 0.1),
		entity("mid", 1, 1),
		entity("exact", 1, 0),
	}

	got := Search([]float32{1, 0}, corpus, 2, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "near", got[1].ID)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
	assert.Equal(t, "ticket exact", got[0].Title)
}

func TestSearchRandomCorpusProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	corpus := make([]model.EmbeddedEntity, 50)
	ids := make(map[string]bool)
	for i := range corpus {
		vec := []float32{rng.Float32(), rng.Float32() - 0.5, rng.Float32()}
		corpus[i] = entity(string(rune('A'+i%26))+string(rune('a'+i/26)), vec...)
		ids[corpus[i].ID] = true
	}

	got := Search([]float32{0.3, 0.1, 0.9}, corpus, 7, 0)

	require.Len(t, got, 7)
	for i, r := range got {
		assert.True(t, ids[r.ID])
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Similarity, r.Similarity)
		}
	}
}

func TestSearchDropsBelowFloor(t *testing.T) {
	corpus := []model.EmbeddedEntity{
		entity("same", 1, 0),
		entity("orthogonal", 0, 1),
		entity("opposite", -1, 0),
	}

	got := Search([]float32{1, 0}, corpus, 10, 0.5)

	require.Len(t, got, 1)
	assert.Equal(t, "same", got[0].ID)
}

func TestSearchSkipsEntitiesWithoutVector(t *testing.T) {
	corpus := []model.EmbeddedEntity{
		entity("pending"),
		entity("ready", 1, 0),
	}

	got := Search([]float32{0, 1}, corpus, 10, 0)

	require.Len(t, got, 1)
	assert.Equal(t, "ready", got[0].ID)
}

func TestSearchTieBreaksOnFresherVector(t *testing.T) {
	older := entity("older", 1, 0)
	older.VectorUpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := entity("newer", 2, 0)
	newer.VectorUpdatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	got := Search([]float32{1, 0}, []model.EmbeddedEntity{older, newer}, 2, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].ID)
	assert.Equal(t, "older", got[1].ID)
}

func TestSearchEmptyCorpus(t *testing.T) {
	got := Search([]float32{1, 0}, nil, 5, 0)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Search([]float32{1, 0}, []model.EmbeddedEntity{entity("a", 1, 0)}, 0, 0))
}

func TestSearchCarriesRoutingFields(t *testing.T) {
	dept, user := "dept-1", "user-1"
	e := entity("t1", 1, 0)
	e.DepartmentID = &dept
	e.AssignedTo = &user

	got := Search([]float32{1, 0}, []model.EmbeddedEntity{e}, 1, 0)

	require.Len(t, got, 1)
	assert.Equal(t, &dept, got[0].DepartmentID)
	assert.Equal(t, &user, got[0].AssignedTo)
	assert.Equal(t, model.KindTicket, got[0].Kind)
}
