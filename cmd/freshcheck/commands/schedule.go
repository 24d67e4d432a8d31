package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stonexiaolei/tuzhan-data/internal/scheduler"
	"github.com/stonexiaolei/tuzhan-data/internal/scheduler/jobs"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

var (
	reportCron   string
	validateCron string
	maxRetries   int
	retryDelay   time.Duration
	runNow       bool
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "以守护进程方式按计划执行巡检",
	Long: `启动常驻调度器，按 cron 表达式定时执行日报和当天校验。

cron 表达式带秒字段 (6 段)。每次执行都会新建 MongoDB 会话，
执行完立即释放，不跨次共享连接。退出时打印各任务的执行统计。

Example:
  go run ./cmd/freshcheck schedule
  go run ./cmd/freshcheck schedule --report-cron "0 0 9 * * *" --validate-cron "0 30 17 * * *"
  go run ./cmd/freshcheck schedule --run-now --max-retries 0`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&reportCron, "report-cron", "0 0 9 * * *", "daily report cron schedule (with seconds)")
	scheduleCmd.Flags().StringVar(&validateCron, "validate-cron", "", "today validation cron schedule (empty disables)")
	scheduleCmd.Flags().IntVar(&maxRetries, "max-retries", 2, "job retries after a failed run")
	scheduleCmd.Flags().DurationVar(&retryDelay, "retry-delay", time.Minute, "delay between job retries")
	scheduleCmd.Flags().BoolVar(&runNow, "run-now", false, "run the daily report immediately on startup")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	sched := scheduler.New(log)
	sched.SetRetry(maxRetries, retryDelay)

	reportJob := jobs.NewDailyReportJob(cfg, log, reportCron)
	if err := sched.AddJob(reportJob); err != nil {
		return fmt.Errorf("❌ Failed to add report job: %w", err)
	}
	if validateCron != "" {
		if err := sched.AddJob(jobs.NewTodayValidationJob(cfg, log, validateCron)); err != nil {
			return fmt.Errorf("❌ Failed to add validation job: %w", err)
		}
	}

	sched.Start()
	fmt.Printf("✅ Scheduler started, jobs: %v\n", sched.Jobs())

	if runNow {
		if err := sched.RunJob(reportJob.Name()); err != nil {
			return fmt.Errorf("❌ Failed to trigger immediate report run: %w", err)
		}
		fmt.Println("🔄 Immediate report run triggered")
	}

	// SIGINT/SIGTERM 时优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down scheduler...")
	sched.Stop()
	printJobStats(sched)
	return nil
}

// printJobStats reports each job's run history collected during this process
func printJobStats(sched *scheduler.Scheduler) {
	fmt.Println("\n📊 Job statistics:")
	for _, name := range sched.Jobs() {
		history, err := sched.History(name)
		if err != nil {
			continue
		}
		if len(history.Results) == 0 {
			fmt.Printf("   %-20s no runs\n", name)
			continue
		}
		last := history.LatestResults(1)[0]
		fmt.Printf("   %-20s runs=%d success_rate=%.0f%% last=%s (%v)\n",
			name, len(history.Results), history.SuccessRate()*100,
			last.StartTime.Format("2006-01-02 15:04:05"), last.Duration.Round(time.Millisecond))
	}
}
