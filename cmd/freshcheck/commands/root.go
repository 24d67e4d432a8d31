package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "freshcheck",
	Short: "MongoDB 数据新鲜度巡检工具",
	Long: `freshcheck - MongoDB 集合数据新鲜度巡检

逐个 (集合, 连锁) 检查最新数据时间，生成日报 (CSV/JSON/文本)，
异常时通过企业微信机器人推送告警。

Usage:
  go run ./cmd/freshcheck [command]

Examples:
  go run ./cmd/freshcheck report
  go run ./cmd/freshcheck validate
  go run ./cmd/freshcheck ping
  go run ./cmd/freshcheck schedule`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
