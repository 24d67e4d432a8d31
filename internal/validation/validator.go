package validation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// Validator evaluates (collection, chain) pairs against a freshness policy.
// It holds no mutable state, so one instance may evaluate pairs concurrently.
type Validator struct {
	store Store
	loc   *time.Location
	log   *logger.Logger
}

// NewValidator creates a Validator using the given store and reporting timezone
func NewValidator(store Store, loc *time.Location, log *logger.Logger) *Validator {
	return &Validator{
		store: store,
		loc:   loc,
		log:   log,
	}
}

// Evaluate audits one (collection, chain) pair at the instant now.
//
// Storage errors are converted into data: the result always comes back, with
// ErrKind set and the failing count defaulted to 0, so one broken pair never
// stops the batch. An unparseable chain id short-circuits before any query.
func (v *Validator) Evaluate(ctx context.Context, key Key, policy Policy, now time.Time) Result {
	res := Result{Key: key}

	chainID, err := strconv.ParseInt(key.ChainID, 10, 64)
	if err != nil {
		res.ErrKind = ErrorKindInvalidChainID
		res.Err = fmt.Errorf("无效的链ID格式: %s", key.ChainID)
		v.log.WithFields(map[string]interface{}{
			"collection": key.Collection,
			"chain_id":   key.ChainID,
		}).Error("invalid chain id, skipping queries")
		return res
	}

	// Latest create_time, projected and sorted descending
	rec, err := v.store.FindLatest(ctx, key.Collection, chainID)
	if err != nil {
		res.recordQueryError(err)
	}

	if rec != nil {
		ts, perr := NormalizeTimestamp(rec.CreateTime)
		if perr != nil {
			res.ErrKind = ErrorKindParse
			res.Err = perr
			v.log.WithFields(map[string]interface{}{
				"collection": key.Collection,
				"chain_id":   key.ChainID,
			}).WithError(perr).Error("latest create_time unparseable")
		} else {
			latest := ts
			res.Latest = &latest
			res.IsToday = CivilDate(ts, v.loc) == CivilDate(now, v.loc)

			// Records since the top of the latest active hour
			hour := RoundDownToHour(ts, v.loc)
			n, cerr := v.store.CountMatching(ctx, key.Collection, Filter{ChainID: chainID, After: &hour})
			if cerr != nil {
				res.recordQueryError(cerr)
			} else {
				res.WindowedCount = n
			}
		}
	}

	// Unbounded count, queried even when no latest record was found
	total, err := v.store.CountMatching(ctx, key.Collection, Filter{ChainID: chainID})
	if err != nil {
		res.recordQueryError(err)
	} else {
		res.TotalCount = total
	}

	if policy == PolicyStrict {
		window := DayBounds(now, v.loc)
		todayCount, err := v.store.CountMatching(ctx, key.Collection, Filter{
			ChainID: chainID,
			From:    &window.Start,
			To:      &window.End,
		})
		if err != nil {
			res.recordQueryError(err)
		} else {
			res.TodayCount = todayCount
		}

		res.Success = !res.Failed() && res.TodayCount > 0 && res.IsToday
	}

	v.log.WithFields(map[string]interface{}{
		"collection":     key.Collection,
		"chain_id":       key.ChainID,
		"policy":         policy.String(),
		"windowed_count": res.WindowedCount,
		"total_count":    res.TotalCount,
	}).Debug("pair evaluated")

	return res
}

// recordQueryError keeps the first error, later ones only get logged
func (r *Result) recordQueryError(err error) {
	if r.ErrKind == ErrorKindNone {
		r.ErrKind = ErrorKindQuery
		r.Err = err
	}
}
