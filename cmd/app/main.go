package main

import (
	"flag"
	"fmt"
	"os"

	"MorningBrief/internal/di"
	"MorningBrief/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "morningbrief: config: %v\n", err)
		os.Exit(2)
	}
	if *checkOnly {
		fmt.Printf("config ok: env=%s provider=%s symbols=%v scheduler=%t telegram=%t kafka=%t redis=%t\n",
			cfg.Environment, cfg.Provider.Type, cfg.Brief.Symbols, cfg.Scheduler.Enabled,
			cfg.Telegram.Enabled, cfg.Kafka.Enabled, cfg.Redis.Enabled)
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "morningbrief: init: %v\n", err)
		os.Exit(1)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "morningbrief: %v\n", err)
		os.Exit(1)
	}
}
