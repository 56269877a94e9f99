package dto

import "github.com/fadilmartias/ticket-router/internal/model"

type SuggestRoutingRequest struct {
	Description string `json:"description"`
}

// RoutingSuggestionDTO is a suggestion plus whether an embedding provider
// was available to produce it.
type RoutingSuggestionDTO struct {
	Configured bool `json:"configured"`
	model.RoutingSuggestion
}

type RelatedItemsDTO struct {
	Configured bool `json:"configured"`
	model.RelatedItems
}

type EntityChangedDTO struct {
	Kind   model.EntityKind `json:"kind"`
	ID     string           `json:"id"`
	Queued bool             `json:"queued"` // false when folded into an outstanding job
}

// NeutralSuggestion is served when no embedding provider is configured.
func NeutralSuggestion(reason string) RoutingSuggestionDTO {
	return RoutingSuggestionDTO{
		Configured: false,
		RoutingSuggestion: model.RoutingSuggestion{
			Reason:         reason,
			RelatedTickets: []model.SimilarityResult{},
			RelatedDocs:    []model.SimilarityResult{},
		},
	}
}

func NeutralRelatedItems(ticketID string) RelatedItemsDTO {
	return RelatedItemsDTO{
		Configured: false,
		RelatedItems: model.RelatedItems{
			TicketID:  ticketID,
			Tickets:   []model.SimilarityResult{},
			Documents: []model.SimilarityResult{},
		},
	}
}
