package investigation

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// QueryType records why a search query was generated.
type QueryType string

const (
	QueryInitial    QueryType = "initial"
	QueryEnriched   QueryType = "enriched"
	QueryGapFill    QueryType = "gap_fill"
	QueryRefinement QueryType = "refinement"
)

// SearchQuery is one planned provider request.
type SearchQuery struct {
	ID         uuid.UUID         `json:"id"`
	InfoType   InformationType   `json:"info_type"`
	QueryType  QueryType         `json:"query_type"`
	ProviderID string            `json:"provider_id"`
	CheckType  values.CheckType  `json:"check_type"`
	Params     map[string]string `json:"params"`
	Priority   int               `json:"priority"`
	ParentID   *uuid.UUID        `json:"parent_id,omitempty"`
}

// NewSearchQuery mints a query with a UUIDv7 ID.
func NewSearchQuery(t InformationType, qt QueryType, providerID string, ct values.CheckType, params map[string]string) *SearchQuery {
	if params == nil {
		params = make(map[string]string)
	}
	return &SearchQuery{
		ID:        uuid.Must(uuid.NewV7()),
		InfoType:  t,
		QueryType: qt,
		ProviderID: providerID,
		CheckType: ct,
		Params:    params,
	}
}

// QueryStatus is the terminal state of an executed query.
type QueryStatus string

const (
	QuerySuccess     QueryStatus = "success"
	QueryFailed      QueryStatus = "failed"
	QueryTimeout     QueryStatus = "timeout"
	QueryRateLimited QueryStatus = "rate_limited"
	QueryNoProvider  QueryStatus = "no_provider"
	QuerySkipped     QueryStatus = "skipped"
)

// QueryResult carries one executed query's outcome. NormalizedData is the
// sole payload the assessor inspects.
type QueryResult struct {
	QueryID        uuid.UUID              `json:"query_id"`
	Status         QueryStatus            `json:"status"`
	NormalizedData map[string]interface{} `json:"normalized_data,omitempty"`
	FindingsCount  int                    `json:"findings_count"`
	Duration       time.Duration          `json:"duration"`
	CacheHit       bool                   `json:"cache_hit"`
	ProviderID     string                 `json:"provider_id,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// ExecutionSummary aggregates one iteration's query outcomes.
type ExecutionSummary struct {
	Total         int                 `json:"total"`
	StatusCounts  map[QueryStatus]int `json:"status_counts"`
	CacheHits     int                 `json:"cache_hits"`
	ProvidersUsed []string            `json:"providers_used"`
}

// SuccessRate is successes over total, 0 when nothing ran.
func (s ExecutionSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.StatusCounts[QuerySuccess]) / float64(s.Total)
}
