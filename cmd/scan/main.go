// The scan command builds a one-shot market report: reference profiles,
// profile matches, trending tokens, new gems and top gainers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dexagent/internal/config"
	"dexagent/internal/engine"
	"dexagent/internal/marketdata"
	"dexagent/internal/report"
)

func main() {
	demo := flag.Bool("demo", false, "Use generated market data instead of the live API")
	seed := flag.Int64("seed", 42, "Seed for generated market data")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall scan timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var source engine.MarketSource
	if *demo || cfg.DemoMode {
		source = marketdata.NewDemoSource(*seed)
	} else {
		source = marketdata.NewClient(cfg.DexScreenerBaseURL, logger,
			marketdata.WithTimeout(cfg.RequestTimeout))
	}

	r := report.BuildMarketReport(ctx, source, nil, time.Now().UTC())
	fmt.Print(report.FormatMarketReport(r))
}
