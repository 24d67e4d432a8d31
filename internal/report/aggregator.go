package report

import (
	"fmt"
	"time"

	"github.com/stonexiaolei/tuzhan-data/internal/validation"
)

// Aggregator folds evaluation results into per-chain summaries. It resolves
// display names and keeps the caller-supplied ordering so reports are
// reproducible across runs with identical configuration.
type Aggregator struct {
	Classifier      validation.Classifier
	ChainNames      map[string]string
	CollectionNames map[string]string
}

// ChainName resolves a chain's display name, falling back to the raw id
func (a Aggregator) ChainName(chainID string) string {
	if name, ok := a.ChainNames[chainID]; ok {
		return name
	}
	return fmt.Sprintf("连锁ID:%s", chainID)
}

// CollectionName resolves a collection's display name, falling back to the
// raw collection name
func (a Aggregator) CollectionName(collection string) string {
	if name, ok := a.CollectionNames[collection]; ok {
		return name
	}
	return collection
}

// Build groups general-policy results by chain. Iteration follows the
// configured chain and collection order, not the order results arrived in,
// so a concurrent evaluation stays deterministic.
func (a Aggregator) Build(results []validation.Result, collections, chainIDs []string, strict *StrictValidation, now time.Time) *Report {
	byKey := make(map[validation.Key]validation.Result, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	rep := &Report{
		GeneratedAt: now,
		Date:        validation.CivilDate(now, a.Classifier.Loc),
		Strict:      strict,
	}

	for _, chainID := range chainIDs {
		sum := ChainSummary{
			ChainID:   chainID,
			ChainName: a.ChainName(chainID),
		}

		for _, col := range collections {
			r, ok := byKey[validation.Key{Collection: col, ChainID: chainID}]
			if !ok {
				continue
			}

			sum.Results = append(sum.Results, r)
			if !r.Failed() {
				sum.TotalRecords += r.WindowedCount
			}

			if problem := a.Classifier.Classify(r, validation.PolicyGeneral, now); problem != validation.ProblemNone {
				sum.Anomalies = append(sum.Anomalies, Anomaly{
					Collection:  col,
					DisplayName: a.CollectionName(col),
					LastUpdate:  LastUpdateDisplay(r, a.Classifier.Loc),
					Problem:     problem,
				})
			}
		}

		sum.Success = len(sum.Anomalies) == 0
		rep.Chains = append(rep.Chains, sum)
	}

	return rep
}

// BuildStrict folds the designated chain's strict-policy results, one per
// collection in configured order
func (a Aggregator) BuildStrict(results []validation.Result, chainID string, now time.Time) *StrictValidation {
	sv := &StrictValidation{
		ChainID:          chainID,
		ChainName:        a.ChainName(chainID),
		TodayDate:        validation.CivilDate(now, a.Classifier.Loc),
		Results:          results,
		TotalCollections: len(results),
		ValidatedAt:      now,
	}

	for _, r := range results {
		if r.Success {
			sv.SuccessCount++
		} else {
			sv.FailedCount++
		}
	}
	sv.Success = sv.FailedCount == 0

	return sv
}

// LastUpdateDisplay renders a result's latest timestamp in the reporting
// timezone, 无数据 when absent
func LastUpdateDisplay(r validation.Result, loc *time.Location) string {
	if r.Latest == nil {
		return "无数据"
	}
	return r.Latest.In(loc).Format("2006-01-02 15:04:05")
}
