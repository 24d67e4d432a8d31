// Package runner orchestrates a full audit run: sequential evaluation in
// configured order, row-log and snapshot artifacts, and webhook delivery.
package runner

import (
	"context"
	"time"

	"github.com/stonexiaolei/tuzhan-data/internal/notify"
	"github.com/stonexiaolei/tuzhan-data/internal/report"
	"github.com/stonexiaolei/tuzhan-data/internal/validation"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// Notifier is the outbound delivery surface; throttling lives behind it
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, msg notify.Message) error
}

// Runner executes audit runs. Every run opens with a fresh storage session
// owned by the caller; no state survives between runs.
type Runner struct {
	cfg       *config.Config
	validator *validation.Validator
	agg       report.Aggregator
	builder   notify.Builder
	writer    *report.Writer
	notifier  Notifier
	log       *logger.Logger
	loc       *time.Location

	now func() time.Time
}

// New creates a Runner over an open storage session
func New(cfg *config.Config, store validation.Store, notifier Notifier, log *logger.Logger) *Runner {
	loc := cfg.Location()
	classifier := validation.Classifier{Loc: loc, FreshTodayOK: cfg.Audit.FreshTodayOK}

	return &Runner{
		cfg:       cfg,
		validator: validation.NewValidator(store, loc, log),
		agg: report.Aggregator{
			Classifier:      classifier,
			ChainNames:      cfg.Audit.ChainNames,
			CollectionNames: cfg.Audit.CollectionNames,
		},
		builder: notify.Builder{
			ChainNames:      cfg.Audit.ChainNames,
			CollectionNames: cfg.Audit.CollectionNames,
			Mentions:        cfg.WeChat,
			Loc:             loc,
		},
		writer:   report.NewWriter(cfg.Audit.OutputDir, loc),
		notifier: notifier,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

// WithNow overrides the clock, used by tests
func (r *Runner) WithNow(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Outcome is what a report run produced
type Outcome struct {
	Report  *report.Report
	Summary report.Summary
}

// RunReport performs the daily freshness report: every (collection, chain)
// pair under the general policy, the designated chain under the strict
// policy, artifacts on disk, then one webhook message per chain.
func (r *Runner) RunReport(ctx context.Context) (*Outcome, error) {
	start := r.now()
	collections := r.cfg.Audit.Collections
	chainIDs := r.cfg.Audit.ChainIDs

	r.log.WithFields(map[string]interface{}{
		"collections": len(collections),
		"chains":      len(chainIDs),
		"database":    r.cfg.Mongo.Database,
	}).Info("开始生成 MongoDB 数据报告")

	rowLog, err := r.writer.OpenRowLog(start)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rowLog.Close(); cerr != nil {
			r.log.WithError(cerr).Error("close row log")
		}
	}()

	// Strict evaluation order: collection-major, chains within
	results := make([]validation.Result, 0, len(collections)*len(chainIDs))
	for _, col := range collections {
		for _, chainID := range chainIDs {
			key := validation.Key{Collection: col, ChainID: chainID}
			res := r.validator.Evaluate(ctx, key, validation.PolicyGeneral, r.now())
			results = append(results, res)

			if aerr := rowLog.Append(r.now(), res); aerr != nil {
				r.log.WithError(aerr).Error("append report row")
			}
		}
	}

	strict := r.runStrictValidation(ctx, start)

	rep := r.agg.Build(results, collections, chainIDs, strict, start)

	if _, err := r.writer.WriteReportSnapshot(rep, start); err != nil {
		r.log.WithError(err).Error("write report snapshot")
	}

	summary := report.Summary{
		Date:        validation.CivilDate(start, r.loc),
		Elapsed:     r.now().Sub(start),
		Database:    r.cfg.Mongo.Database,
		Collections: len(collections),
		Chains:      len(chainIDs),
		Processed:   len(results),
		OutputPath:  rowLog.Path(),
	}
	if _, err := r.writer.WriteSummary(summary, start); err != nil {
		r.log.WithError(err).Error("write summary")
	}

	r.sendReports(ctx, rep, start)

	return &Outcome{Report: rep, Summary: summary}, nil
}

// runStrictValidation evaluates the designated chain across all collections,
// nil when no strict chain is configured
func (r *Runner) runStrictValidation(ctx context.Context, start time.Time) *report.StrictValidation {
	chainID := r.cfg.Audit.StrictChainID
	if chainID == "" {
		r.log.Info("未配置特殊校验连锁ID，跳过特殊校验")
		return nil
	}

	r.log.WithField("chain_id", chainID).Info("开始特殊连锁的当天数据校验")

	results := make([]validation.Result, 0, len(r.cfg.Audit.Collections))
	for _, col := range r.cfg.Audit.Collections {
		key := validation.Key{Collection: col, ChainID: chainID}
		results = append(results, r.validator.Evaluate(ctx, key, validation.PolicyStrict, r.now()))
	}

	sv := r.agg.BuildStrict(results, chainID, r.now())

	if path, err := r.writer.WriteStrictSnapshot(sv, start); err != nil {
		r.log.WithError(err).Error("write strict validation snapshot")
	} else {
		r.log.WithField("path", path).Info("特殊校验结果已保存")
	}

	return sv
}

// sendReports delivers one message per chain plus the strict result; every
// failure is logged and skipped, delivery never alters the validation outcome
func (r *Runner) sendReports(ctx context.Context, rep *report.Report, now time.Time) {
	if !r.notifier.Enabled() {
		return
	}

	for _, sum := range rep.Chains {
		if err := r.notifier.Send(ctx, r.builder.ChainReport(sum, now)); err != nil {
			r.log.WithField("chain_id", sum.ChainID).WithError(err).Error("send chain report")
		}
	}

	if rep.Strict != nil {
		if err := r.notifier.Send(ctx, r.builder.StrictReport(rep.Strict)); err != nil {
			r.log.WithError(err).Error("send strict validation report")
		}
	}
}

// ValidationOutcome is what a today-validation run produced
type ValidationOutcome struct {
	Results   []validation.Result
	Succeeded int
	Failed    int
}

// OK reports whether every pair passed the same-day contract
func (o *ValidationOutcome) OK() bool {
	return o.Failed == 0
}

// RunTodayValidation checks every (collection, chain) pair against the
// same-day contract, archives the results, and sends one combined report.
func (r *Runner) RunTodayValidation(ctx context.Context) (*ValidationOutcome, error) {
	start := r.now()
	r.log.Info("开始批量校验所有连锁的当天数据")

	outcome := &ValidationOutcome{}
	for _, col := range r.cfg.Audit.Collections {
		for _, chainID := range r.cfg.Audit.ChainIDs {
			key := validation.Key{Collection: col, ChainID: chainID}
			res := r.validator.Evaluate(ctx, key, validation.PolicyStrict, r.now())
			outcome.Results = append(outcome.Results, res)

			if res.Success {
				outcome.Succeeded++
			} else {
				outcome.Failed++
			}
		}
	}

	if path, err := r.writer.WriteValidationSnapshot(outcome.Results, start); err != nil {
		r.log.WithError(err).Error("write validation snapshot")
	} else {
		r.log.WithField("path", path).Info("验证结果已保存")
	}

	if r.notifier.Enabled() {
		msg := r.builder.TodayValidationReport(outcome.Results, start)
		if err := r.notifier.Send(ctx, msg); err != nil {
			r.log.WithError(err).Error("send validation report")
		}
	}

	r.log.WithFields(map[string]interface{}{
		"total":     len(outcome.Results),
		"succeeded": outcome.Succeeded,
		"failed":    outcome.Failed,
	}).Info("批量验证完成")

	return outcome, nil
}
