package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stonexiaolei/tuzhan-data/internal/notify"
	"github.com/stonexiaolei/tuzhan-data/internal/runner"
	"github.com/stonexiaolei/tuzhan-data/internal/storage"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/database"
	"github.com/stonexiaolei/tuzhan-data/pkg/httputil"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "生成 MongoDB 数据日报",
	Long: `逐个检查配置的 (集合, 连锁) 组合，生成日报并推送企业微信。

这个命令会:
- 连接 MongoDB 并逐对查询最新数据时间
- 追加写入 CSV 行日志 (mongo_reports/)
- 对特殊连锁执行严格当天校验 (validation_reports/)
- 写出 JSON 快照和文本摘要
- 推送各连锁日报到企业微信机器人

Example:
  go run ./cmd/freshcheck report
  go run ./cmd/freshcheck report --env-file /etc/freshcheck/.env`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	ctx := context.Background()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if closeErr := db.Close(context.Background()); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close mongodb session")
		}
	}()

	store := storage.NewMongo(db.Database)
	notifier := notify.New(cfg.WeChat, httputil.New(log), log)
	run := runner.New(cfg, store, notifier, log)

	outcome, err := run.RunReport(ctx)
	if err != nil {
		return fmt.Errorf("❌ Report failed: %w", err)
	}

	fmt.Println(outcome.Summary.Render())
	return nil
}
