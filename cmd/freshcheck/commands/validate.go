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

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "严格校验所有组合的当天数据",
	Long: `对所有配置的 (集合, 连锁) 组合执行严格当天校验。

每个组合都要求: 当天存在数据, 且最新数据时间在当天。
结果写入 JSON 快照并推送企业微信；存在失败时以非零状态退出。

Example:
  go run ./cmd/freshcheck validate`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	outcome, err := run.RunTodayValidation(ctx)
	if err != nil {
		return fmt.Errorf("❌ Validation failed: %w", err)
	}

	fmt.Printf("✅ 成功: %d  ❌ 失败: %d  总计: %d\n",
		outcome.Succeeded, outcome.Failed, outcome.Succeeded+outcome.Failed)

	if !outcome.OK() {
		return fmt.Errorf("❌ %d collection/chain pairs missing today's data", outcome.Failed)
	}
	return nil
}
