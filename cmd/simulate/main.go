package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/reachyou/internal/simulation"
	"github.com/okian/reachyou/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	def := simulation.DefaultConfig()
	var (
		baseURL    = flag.String("url", def.BaseURL, "Base URL of the service")
		profiles   = flag.Int("profiles", def.Profiles, "Profiles to create")
		readings   = flag.Int("readings", def.ReadingsPerProfile, "Readings per profile")
		couples    = flag.Int("couples", def.Couples, "Couples to register")
		ratings    = flag.Int("ratings", def.RatingsPerCouple, "Ratings per couple")
		workers    = flag.Int("workers", def.Workers, "Concurrent requests")
		timeout    = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		settle     = flag.Duration("settle", def.SettleTimeout, "Maximum wait for queued readings")
		seed       = flag.Uint64("seed", def.Seed, "Generator seed")
		outputFile = flag.String("output", "", "Write the generated data to this JSON file")
		logFormat  = flag.String("log-format", "text", "Log format: text or json")
		verbose    = flag.Bool("verbose", false, "Log rejected readings")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulation.ShowHelp()
		return
	}

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := simulation.Config{
		BaseURL:            *baseURL,
		Profiles:           *profiles,
		ReadingsPerProfile: *readings,
		Couples:            *couples,
		RatingsPerCouple:   *ratings,
		Workers:            *workers,
		Timeout:            *timeout,
		SettleTimeout:      *settle,
		Seed:               *seed,
		OutputFile:         *outputFile,
		Verbose:            *verbose,
	}

	if _, err := simulation.NewRunner(cfg, logger.Named("simulation")).Run(ctx); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
