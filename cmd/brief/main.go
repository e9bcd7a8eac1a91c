// Command brief generates one morning brief and prints it or writes it to a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"MorningBrief/internal/di"
	"MorningBrief/internal/usecase"
	"MorningBrief/pkg/config"
	applogger "MorningBrief/pkg/logger"
	xutil "MorningBrief/pkg/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "brief: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbols := flag.String("symbols", "", "comma separated symbols (default from config)")
	keywords := flag.String("keywords", "", "comma separated news keywords (default from config)")
	tz := flag.String("tz", "", "IANA timezone (default from config)")
	output := flag.String("output", "", "write the markdown here instead of stdout")
	send := flag.Bool("send", false, "deliver to the configured channels")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// The HTTP server is not running, so there is nobody to scrape.
	cfg.Metrics.Enabled = false
	cfg.WebSocket.Enabled = false

	runner, err := di.InitializeRunner(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			runner.Log.Warn("close runner", applogger.Error(err))
		}
	}()

	params := usecase.BriefParams{
		Symbols:  cfg.Brief.Symbols,
		Keywords: cfg.Brief.Keywords,
		Timezone: cfg.Brief.Timezone,
		Deliver:  *send,
		Daily:    true,
	}
	if v := xutil.SplitCSV(*symbols); len(v) > 0 {
		params.Symbols = v
	}
	if v := xutil.SplitCSV(*keywords); len(v) > 0 {
		params.Keywords = v
	}
	if *tz != "" {
		params.Timezone = *tz
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brief, err := runner.Briefs.Generate(ctx, params)
	if err != nil {
		return err
	}

	for _, d := range brief.Deliveries {
		if d.Sent {
			runner.Log.Info("delivered", applogger.String("channel", d.Channel))
		} else {
			runner.Log.Warn("delivery failed", applogger.String("channel", d.Channel), applogger.String("error", d.Error))
		}
	}

	if *output == "" {
		_, err = fmt.Fprintln(os.Stdout, brief.Markdown)
		return err
	}
	if err := os.WriteFile(*output, []byte(brief.Markdown), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *output, err)
	}
	runner.Log.Info("brief written", applogger.String("path", *output))
	return nil
}
