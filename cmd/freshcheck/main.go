package main

import (
	"os"

	"github.com/stonexiaolei/tuzhan-data/cmd/freshcheck/commands"
)

// main is the entry point for the freshcheck CLI
// ⭐ 统一 CLI 入口: go run ./cmd/freshcheck [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
