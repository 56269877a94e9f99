// Package search ranks embedded documents and tickets by cosine similarity
// to a query vector.
package search

import (
	"math"
	"sort"

	"github.com/fadilmartias/ticket-router/internal/model"
)

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Vectors of different length or with zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity is CosineSimilarity clamped to [0, 1]; opposite directions
// carry no relevance.
func Similarity(a, b []float32) float64 {
	s := CosineSimilarity(a, b)
	switch {
	case s < 0, math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Search returns at most k entities of corpus closest to query, most similar
// first. Entities without a vector are not candidates. Results under
// minSimilarity are dropped. Equal scores prefer the fresher vector.
func Search(query []float32, corpus []model.EmbeddedEntity, k int, minSimilarity float64) []model.SimilarityResult {
	if k <= 0 || len(query) == 0 {
		return []model.SimilarityResult{}
	}

	type scored struct {
		entity     *model.EmbeddedEntity
		similarity float64
	}
	hits := make([]scored, 0, len(corpus))
	for i := range corpus {
		e := &corpus[i]
		if len(e.Vector) == 0 {
			continue
		}
		s := Similarity(query, e.Vector)
		if s < minSimilarity {
			continue
		}
		hits = append(hits, scored{entity: e, similarity: s})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].similarity != hits[j].similarity {
			return hits[i].similarity > hits[j].similarity
		}
		return hits[i].entity.VectorUpdatedAt.After(hits[j].entity.VectorUpdatedAt)
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]model.SimilarityResult, len(hits))
	for i, h := range hits {
		results[i] = model.SimilarityResult{
			Kind:         h.entity.Kind,
			ID:           h.entity.ID,
			Title:        h.entity.Title,
			Similarity:   h.similarity,
			DepartmentID: h.entity.DepartmentID,
			AssignedTo:   h.entity.AssignedTo,
		}
	}
	return results
}
