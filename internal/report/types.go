package report

import (
	"time"

	"github.com/stonexiaolei/tuzhan-data/internal/validation"
)

// Anomaly is one classified freshness deviation attached to a collection
type Anomaly struct {
	Collection  string             `json:"collection"`
	DisplayName string             `json:"display_name"`
	LastUpdate  string             `json:"last_update"`
	Problem     validation.Problem `json:"problem"`
}

// ChainSummary aggregates one chain's evaluations under the general policy
type ChainSummary struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`

	// TotalRecords sums windowed counts over the chain's successfully
	// evaluated collections
	TotalRecords int64 `json:"total_records"`

	Results   []validation.Result `json:"results"`
	Anomalies []Anomaly           `json:"anomalies"`
	Success   bool                `json:"success"`
}

// StrictValidation is the dedicated same-day contract check for the
// designated chain, kept apart from the per-chain general results
type StrictValidation struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	TodayDate string `json:"today_date"`

	Results          []validation.Result `json:"validation_results"`
	TotalCollections int                 `json:"total_collections"`
	SuccessCount     int                 `json:"successful_collections"`
	FailedCount      int                 `json:"failed_collections"`
	Success          bool                `json:"success"`

	ValidatedAt time.Time `json:"validation_time"`
}

// Report is the full deterministic outcome of a run
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Date        string            `json:"date"`
	Chains      []ChainSummary    `json:"chains"`
	Strict      *StrictValidation `json:"special_validation,omitempty"`
}
