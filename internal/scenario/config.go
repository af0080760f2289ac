package scenario

import (
	"sync/atomic"
	"time"
)

// Config holds configuration for a scenario run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Venues     int           // Number of venues to drive
	Applicants int           // Applications per event
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	JWTSecret  string        // Secret used to sign caller tokens
	LogFile    string        // Log file for scenario output
	Watch      bool          // Subscribe to each venue while it is driven
	Verbose    bool          // Enable verbose logging
}

// Stats holds run statistics. Counters are updated by concurrent workers.
type Stats struct {
	VenuesCreated   atomic.Int64
	Applications    atomic.Int64
	Accepted        atomic.Int64
	Rejected        atomic.Int64
	Confirmed       atomic.Int64
	Conflicts       atomic.Int64 // expected 409s from repeated actions
	UpdatesReceived atomic.Int64
	Verified        atomic.Int64
	Failed          atomic.Int64
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
