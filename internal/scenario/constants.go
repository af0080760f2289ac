package scenario

import "time"

// Runner configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)

// Scenario timing constants.
const (
	tokenTTL      = time.Hour
	eventLeadTime = 7 * 24 * time.Hour
	baseRate      = 100
	rateStep      = 10
	watchSettle   = 50 * time.Millisecond
)
