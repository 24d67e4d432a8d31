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

// DailyReportJob generates the daily freshness report
// ⭐ SSOT: 日报调度只在此 Job 中
type DailyReportJob struct {
	config   *config.Config
	logger   *logger.Logger
	schedule string
}

// NewDailyReportJob creates a new daily report job
func NewDailyReportJob(cfg *config.Config, log *logger.Logger, schedule string) *DailyReportJob {
	return &DailyReportJob{
		config:   cfg,
		logger:   log,
		schedule: schedule,
	}
}

// Name returns the job name
func (j *DailyReportJob) Name() string {
	return "daily_report"
}

// Schedule returns the cron schedule expression (with seconds)
func (j *DailyReportJob) Schedule() string {
	return j.schedule
}

// Run executes the daily report. Each run opens its own database
// session so a failed run leaves no state behind for the next one.
func (j *DailyReportJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled daily report")

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

	if _, err := run.RunReport(ctx); err != nil {
		return fmt.Errorf("run report: %w", err)
	}

	j.logger.Info("Scheduled daily report completed successfully")
	return nil
}
