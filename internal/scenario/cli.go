package scenario

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/gigbook/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "scenario_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the scenario tool.
func ShowHelp() {
	os.Stdout.WriteString(`gigbook Scenario Tool
=====================

Drives the booking API end to end: each venue publishes an event, musicians
apply, the owner accepts one application and rejects the rest, the selected
musician confirms, and the venue view is checked for the derived statuses.

Usage:
  go run ./cmd/scenario [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -venues int
        Number of venues to drive (default 20)
  -applicants int
        Applications per event (default 3)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -secret string
        JWT secret shared with the service (default: the development secret)
  -watch
        Subscribe to each venue and count live updates
  -log string
        Log file for scenario output (default: scenario_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Drive 100 venues with 5 applicants each
  go run ./cmd/scenario -venues 100 -applicants 5

  # Watch live updates while driving
  go run ./cmd/scenario -watch -verbose
`)
}
