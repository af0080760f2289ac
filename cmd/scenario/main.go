package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/gigbook/internal/config"
	"github.com/okian/gigbook/internal/scenario"
	"github.com/okian/gigbook/pkg/logger"
)

// Default configuration constants.
const (
	defaultVenues      = 20
	defaultApplicants  = 3
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		venues     = flag.Int("venues", defaultVenues, "Number of venues to drive")
		applicants = flag.Int("applicants", defaultApplicants, "Applications per event")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		secret     = flag.String("secret", config.DevJWTSecret, "JWT secret shared with the service")
		watch      = flag.Bool("watch", false, "Subscribe to each venue and count live updates")
		logFile    = flag.String("log", "", "Log file for scenario output (default: scenario_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		scenario.ShowHelp()
		return
	}

	if err := scenario.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &scenario.Config{
		BaseURL:    *baseURL,
		Venues:     *venues,
		Applicants: *applicants,
		Workers:    *workers,
		Timeout:    *timeout,
		JWTSecret:  *secret,
		LogFile:    *logFile,
		Watch:      *watch,
		Verbose:    *verbose,
	}

	if _, err := scenario.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Scenario failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
