package jobs

import (
	"context"
	"fmt"

	"github.com/stonexiaolei/tuzhan-data/internal/notify"
	"github.com/stonexiaolei/tuzhan-data/internal/runner"
	"github.com/stonexiaolei/tuzhan-data/internal/storage"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/database"
	"github.com/stonexiaolei/tuzhan-data/pkg/httputil"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// TodayValidationJob runs the strict same-day validation sweep
type TodayValidationJob struct {
	config   *config.Config
	logger   *logger.Logger
	schedule string
}

// NewTodayValidationJob creates a new today-validation job
func NewTodayValidationJob(cfg *config.Config, log *logger.Logger, schedule string) *TodayValidationJob {
	return &TodayValidationJob{
		config:   cfg,
		logger:   log,
		schedule: schedule,
	}
}

// Name returns the job name
func (j *TodayValidationJob) Name() string {
	return "today_validation"
}

// Schedule returns the cron schedule expression (with seconds)
func (j *TodayValidationJob) Schedule() string {
	return j.schedule
}

// Run executes the validation sweep with a fresh database session
func (j *TodayValidationJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled today validation")

	db, err := database.New(ctx, j.config)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if closeErr := db.Close(context.Background()); closeErr != nil {
			j.logger.WithError(closeErr).Warn("Failed to close mongodb session")
		}
	}()

	store := storage.NewMongo(db.Database)
	notifier := notify.New(j.config.WeChat, httputil.New(j.logger), j.logger)
	run := runner.New(j.config, store, notifier, j.logger)

	outcome, err := run.RunTodayValidation(ctx)
	if err != nil {
		return fmt.Errorf("run validation: %w", err)
	}
	if !outcome.OK() {
		// 调度场景下验证失败只告警，不算任务失败
		j.logger.WithFields(map[string]interface{}{
			"succeeded": outcome.Succeeded,
			"failed":    outcome.Failed,
		}).Warn("Today validation found stale collections")
	}

	j.logger.Info("Scheduled today validation completed")
	return nil
}
