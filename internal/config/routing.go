package config

import (
	"log/slog"
	"sync"
	"time"
)

// ScoringWeights are the heuristic constants of the routing confidence formula.
// They are product tuning, so every one of them can be overridden from the env.
type ScoringWeights struct {
	TopSimilarityWeight    float64
	CountDivisor           float64
	MaxCountBonus          float64
	MaxConfidence          float64
	DocumentOnlyConfidence float64
	MaxRelatedTickets      int
	MaxRelatedDocs         int
}

type RoutingConfig struct {
	Weights               ScoringWeights
	TicketTopK            int
	DocumentTopK          int
	TicketMinSimilarity   float64
	DocumentMinSimilarity float64
	QueryCacheSize        int
	QueryEmbedTimeout     time.Duration
}

var (
	routingConfig *RoutingConfig
	routingOnce   sync.Once
)

func LoadRoutingConfig() *RoutingConfig {
	routingOnce.Do(func() {
		routingConfig = newRoutingConfig()
	})
	return routingConfig
}

func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		TopSimilarityWeight:    0.6,
		CountDivisor:           10,
		MaxCountBonus:          0.4,
		MaxConfidence:          0.95,
		DocumentOnlyConfidence: 0.1,
		MaxRelatedTickets:      5,
		MaxRelatedDocs:         3,
	}
}

func newRoutingConfig() *RoutingConfig {
	def := DefaultScoringWeights()
	cfg := &RoutingConfig{
		Weights: ScoringWeights{
			TopSimilarityWeight:    getenvFloat("ROUTING_TOP_SIMILARITY_WEIGHT", def.TopSimilarityWeight),
			CountDivisor:           getenvFloat("ROUTING_COUNT_DIVISOR", def.CountDivisor),
			MaxCountBonus:          getenvFloat("ROUTING_MAX_COUNT_BONUS", def.MaxCountBonus),
			MaxConfidence:          getenvFloat("ROUTING_MAX_CONFIDENCE", def.MaxConfidence),
			DocumentOnlyConfidence: getenvFloat("ROUTING_DOCUMENT_ONLY_CONFIDENCE", def.DocumentOnlyConfidence),
			MaxRelatedTickets:      getenvInt("ROUTING_MAX_RELATED_TICKETS", def.MaxRelatedTickets),
			MaxRelatedDocs:         getenvInt("ROUTING_MAX_RELATED_DOCS", def.MaxRelatedDocs),
		},
		TicketTopK:            getenvInt("ROUTING_TICKET_TOP_K", 10),
		DocumentTopK:          getenvInt("ROUTING_DOCUMENT_TOP_K", 5),
		TicketMinSimilarity:   getenvFloat("ROUTING_TICKET_MIN_SIMILARITY", 0.5),
		DocumentMinSimilarity: getenvFloat("ROUTING_DOCUMENT_MIN_SIMILARITY", 0.3),
		QueryCacheSize:        getenvInt("ROUTING_QUERY_CACHE_SIZE", 256),
		QueryEmbedTimeout:     getenvDuration("ROUTING_QUERY_EMBED_TIMEOUT", 30*time.Second),
	}

	// Confidence must stay within [0, 0.95] whatever the overrides say.
	w := &cfg.Weights
	if w.MaxConfidence <= 0 || w.MaxConfidence > def.MaxConfidence {
		slog.Warn("ROUTING_MAX_CONFIDENCE out of range, clamping", "value", w.MaxConfidence, "max", def.MaxConfidence)
		w.MaxConfidence = def.MaxConfidence
	}
	if w.TopSimilarityWeight < 0 {
		slog.Warn("ROUTING_TOP_SIMILARITY_WEIGHT is negative, using default", "value", w.TopSimilarityWeight)
		w.TopSimilarityWeight = def.TopSimilarityWeight
	}
	if w.MaxCountBonus < 0 {
		slog.Warn("ROUTING_MAX_COUNT_BONUS is negative, using default", "value", w.MaxCountBonus)
		w.MaxCountBonus = def.MaxCountBonus
	}
	if w.DocumentOnlyConfidence < 0 || w.DocumentOnlyConfidence > w.MaxConfidence {
		slog.Warn("ROUTING_DOCUMENT_ONLY_CONFIDENCE out of range, using default", "value", w.DocumentOnlyConfidence)
		w.DocumentOnlyConfidence = def.DocumentOnlyConfidence
	}
	return cfg
}
