package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/gigbook/pkg/logger"
)

// ErrScenarioFailed is returned when at least one venue run failed.
var ErrScenarioFailed = errors.New("scenario failed")

// Run executes the scenario against config.BaseURL and returns its stats.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting gigbook scenario",
		logger.String("baseURL", config.BaseURL),
		logger.Int("venues", config.Venues),
		logger.Int("applicants", config.Applicants),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("watch", config.Watch))

	c := newClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Drive venues concurrently
	driveVenues(ctx, c, config, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if n := stats.Failed.Load(); n > 0 {
		return stats, fmt.Errorf("%w: %d of %d venues", ErrScenarioFailed, n, config.Venues)
	}
	logger.Get().Info(ctx, "scenario completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *client) error {
	logger.Get().Info(ctx, "checking service health")
	if err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// driveVenues runs one scenario per venue on a pool of workers.
func driveVenues(ctx context.Context, c *client, config *Config, stats *Stats) {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan int, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					stats.Failed.Add(1)
					continue
				}
				out, err := runVenue(ctx, c, config, idx, stats)
				if err == nil {
					err = verifyOutcome(out)
				}
				if err != nil {
					stats.Failed.Add(1)
					logger.Get().Error(ctx, "venue scenario failed", logger.Int("venue", idx), logger.Error(err))
					continue
				}
				stats.Verified.Add(1)
			}
		}()
	}

	for idx := 0; idx < config.Venues; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, actionsPerSecond float64

	created := stats.VenuesCreated.Load()
	if created > 0 {
		successRate = float64(stats.Verified.Load()) / float64(created) * PercentageMultiplier
	}

	actions := stats.Applications.Load() + stats.Accepted.Load() + stats.Rejected.Load() + stats.Confirmed.Load()
	if stats.Duration > 0 {
		actionsPerSecond = float64(actions) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int64("venuesCreated", created),
		logger.Int64("applications", stats.Applications.Load()),
		logger.Int64("accepted", stats.Accepted.Load()),
		logger.Int64("rejected", stats.Rejected.Load()),
		logger.Int64("confirmed", stats.Confirmed.Load()),
		logger.Int64("conflicts", stats.Conflicts.Load()),
		logger.Int64("updatesReceived", stats.UpdatesReceived.Load()),
		logger.Int64("verified", stats.Verified.Load()),
		logger.Int64("failed", stats.Failed.Load()),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("actionsPerSecond", actionsPerSecond))
}
