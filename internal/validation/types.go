package validation

import (
	"context"
	"time"
)

// Policy selects the freshness contract a chain is held to.
//
// Most collections land in an overnight batch, so the general expectation is
// that the latest record carries yesterday's civil date. A designated chain
// under the strict policy must show same-day activity at all times.
type Policy int

const (
	PolicyGeneral Policy = iota
	PolicyStrict
)

// String implements fmt.Stringer
func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "general"
}

// ErrorKind classifies a per-pair evaluation failure. It is data, not an
// escalation: a failed pair never aborts the batch.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindInvalidChainID ErrorKind = "invalid_chain_id"
	ErrorKindParse          ErrorKind = "parse_error"
	ErrorKindQuery          ErrorKind = "query_error"
)

// Key identifies one (collection, chain) pair to audit
type Key struct {
	Collection string `json:"collection"`
	ChainID    string `json:"chain_id"`
}

// Result is the outcome of evaluating one (collection, chain) pair.
// Nothing is mutated after Evaluate returns it.
type Result struct {
	Key Key `json:"key"`

	// Latest is the newest create_time in the pair, normalized to UTC.
	// When nil, WindowedCount is 0 and IsToday is false.
	Latest  *time.Time `json:"latest_create_time,omitempty"`
	IsToday bool       `json:"is_latest_today"`

	// WindowedCount is the number of records strictly newer than the top of
	// the hour containing Latest. An ingestion-rate proxy, not a freshness
	// verdict.
	WindowedCount int64 `json:"windowed_count"`

	// TotalCount is the unbounded record count for the chain, reporting
	// context only.
	TotalCount int64 `json:"total_count"`

	// TodayCount is only computed under PolicyStrict: records inside today's
	// civil-day window. Kept separate from WindowedCount on purpose.
	TodayCount int64 `json:"today_count"`

	// Success is only meaningful under PolicyStrict
	Success bool `json:"success"`

	ErrKind ErrorKind `json:"error_kind,omitempty"`
	Err     error     `json:"-"`
}

// Failed reports whether the evaluation recorded an error
func (r Result) Failed() bool {
	return r.ErrKind != ErrorKindNone
}

// ErrorMessage returns the underlying error text, empty when none
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Record is the projected latest document returned by a Store. The storage
// adapter resolves legacy timestamp field names into the single CreateTime
// value; its dynamic type is normalized by NormalizeTimestamp.
type Record struct {
	CreateTime interface{}
}

// Filter scopes a count query to one chain with an optional create_time bound
type Filter struct {
	ChainID int64

	After *time.Time // create_time > After
	From  *time.Time // create_time >= From
	To    *time.Time // create_time <= To
}

// Store is the document-store surface the validator consumes. It never
// caches or persists results itself.
type Store interface {
	// CountMatching counts records in collection matching the filter
	CountMatching(ctx context.Context, collection string, filter Filter) (int64, error)

	// FindLatest returns the record with the greatest create_time for the
	// chain, projecting only the timestamp field. nil when no record matches.
	FindLatest(ctx context.Context, collection string, chainID int64) (*Record, error)
}
