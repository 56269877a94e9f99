// Package routing turns similar tickets and documents into a routing
// suggestion for a new ticket.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/model"
)

const noEvidenceReason = "No similar tickets or documents found"

// HierarchyReader resolves one sub-department below a department.
type HierarchyReader interface {
	ChildOf(ctx context.Context, parentDepartmentID string) (*string, error)
}

type Scorer struct {
	hierarchy HierarchyReader
	weights   config.ScoringWeights
}

func NewScorer(hierarchy HierarchyReader, weights config.ScoringWeights) *Scorer {
	return &Scorer{hierarchy: hierarchy, weights: weights}
}

// SuggestRouting scores the evidence deterministically. The only outside
// call is the sub-department lookup; when it fails the suggestion is still
// returned without a sub-department.
func (s *Scorer) SuggestRouting(ctx context.Context, description string, tickets, docs []model.SimilarityResult) model.RoutingSuggestion {
	out := model.RoutingSuggestion{
		RelatedTickets: topN(tickets, s.weights.MaxRelatedTickets),
		RelatedDocs:    topN(docs, s.weights.MaxRelatedDocs),
	}
	if len(tickets) == 0 && len(docs) == 0 {
		out.Reason = noEvidenceReason
		return out
	}

	if dept, ok := bestDepartment(tickets); ok {
		out.DepartmentID = &dept
		if assignee, ok := bestAssignee(tickets, dept); ok {
			out.AssigneeID = &assignee
		}
		out.SubDepartmentID = s.subDepartment(ctx, dept)
	}
	out.Confidence = s.confidence(tickets, docs)
	out.Reason = reason(len(tickets), len(docs))

	slog.Debug("routing suggested",
		"description_length", len(description),
		"tickets", len(tickets),
		"documents", len(docs),
		"confidence", out.Confidence,
	)
	return out
}

type departmentEvidence struct {
	id              string
	count           int
	totalSimilarity float64
}

// bestDepartment picks the department maximising mean similarity times
// ln(count+1). Ties keep the department seen first.
func bestDepartment(tickets []model.SimilarityResult) (string, bool) {
	var order []*departmentEvidence
	byID := make(map[string]*departmentEvidence)
	for _, t := range tickets {
		if t.DepartmentID == nil {
			continue
		}
		ev, ok := byID[*t.DepartmentID]
		if !ok {
			ev = &departmentEvidence{id: *t.DepartmentID}
			byID[ev.id] = ev
			order = append(order, ev)
		}
		ev.count++
		ev.totalSimilarity += t.Similarity
	}

	var best *departmentEvidence
	bestScore := 0.0
	for _, ev := range order {
		score := (ev.totalSimilarity / float64(ev.count)) * math.Log(float64(ev.count)+1)
		if best == nil || score > bestScore {
			best, bestScore = ev, score
		}
	}
	if best == nil {
		return "", false
	}
	return best.id, true
}

// bestAssignee sums similarity per assignee over the department's tickets.
func bestAssignee(tickets []model.SimilarityResult, departmentID string) (string, bool) {
	var order []string
	totals := make(map[string]float64)
	for _, t := range tickets {
		if t.DepartmentID == nil || *t.DepartmentID != departmentID || t.AssignedTo == nil {
			continue
		}
		if _, ok := totals[*t.AssignedTo]; !ok {
			order = append(order, *t.AssignedTo)
		}
		totals[*t.AssignedTo] += t.Similarity
	}

	best, found := "", false
	for _, id := range order {
		if !found || totals[id] > totals[best] {
			best, found = id, true
		}
	}
	return best, found
}

func (s *Scorer) subDepartment(ctx context.Context, departmentID string) *string {
	if s.hierarchy == nil {
		return nil
	}
	child, err := s.hierarchy.ChildOf(ctx, departmentID)
	if err != nil {
		slog.Warn("sub-department lookup failed", "department_id", departmentID, "error", err)
		return nil
	}
	return child
}

func (s *Scorer) confidence(tickets, docs []model.SimilarityResult) float64 {
	w := s.weights
	var c float64
	switch {
	case len(tickets) > 0:
		top := 0.0
		for _, t := range tickets {
			top = math.Max(top, t.Similarity)
		}
		c = top*w.TopSimilarityWeight + math.Min(float64(len(tickets))/w.CountDivisor, w.MaxCountBonus)
	case len(docs) > 0:
		c = w.DocumentOnlyConfidence
	}
	return math.Max(0, math.Min(w.MaxConfidence, c))
}

func reason(tickets, docs int) string {
	var parts []string
	if tickets > 0 {
		parts = append(parts, pluralize(tickets, "similar ticket"))
	}
	if docs > 0 {
		parts = append(parts, pluralize(docs, "related document"))
	}
	return "Suggested based on " + strings.Join(parts, " and ")
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// topN returns the n most similar results; the input is left untouched.
func topN(results []model.SimilarityResult, n int) []model.SimilarityResult {
	sorted := make([]model.SimilarityResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
