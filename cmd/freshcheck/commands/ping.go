package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stonexiaolei/tuzhan-data/internal/storage"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/database"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "MongoDB 连接测试",
	Long: `测试 MongoDB 连接并显示各集合的文档估算数。

这个命令会:
- 从 config 读取 MONGO_* 配置
- 建立连接并执行 Ping
- 对每个配置的集合执行估算计数

Example:
  go run ./cmd/freshcheck ping
  go run ./cmd/freshcheck ping --env-file production.env`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	fmt.Println("=== MongoDB Connection Test ===")

	fmt.Println("Loading configuration...")
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Host: %s:%s  Database: %s\n\n", cfg.Mongo.Host, cfg.Mongo.Port, cfg.Mongo.Database)

	log := logger.New(cfg)

	fmt.Println("Connecting to MongoDB...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if closeErr := db.Close(context.Background()); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close mongodb session")
		}
	}()
	fmt.Println("✅ Connection established")

	fmt.Println("Testing connection (Ping)...")
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("❌ Failed to ping MongoDB: %w", err)
	}
	fmt.Println("✅ Ping successful")

	store := storage.NewMongo(db.Database)

	fmt.Println("\n📊 Collection estimated counts:")
	for _, coll := range cfg.Audit.Collections {
		count, err := store.EstimatedCount(ctx, coll)
		if err != nil {
			fmt.Printf("   %-30s ERROR: %v\n", coll, err)
			continue
		}
		fmt.Printf("   %-30s %d\n", coll, count)
	}

	fmt.Println("\n✅ All checks passed!")
	return nil
}
