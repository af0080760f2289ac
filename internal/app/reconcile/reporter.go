package reconcile

import (
	"context"
	"errors"

	"github.com/okian/gigbook/internal/domain/inflight"
	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/pkg/logger"
	"github.com/okian/gigbook/pkg/metrics"
)

// Failure describes one error caught at the reconciler boundary.
type Failure struct {
	VenueID  string
	Op       string
	RecordID string
	Err      error
}

// Reporter is the single place reconciler failures go through. It logs,
// records metrics and turns the failure into the Notice subscribers see.
type Reporter struct {
	logger logger.Logger
}

// NewReporter creates a reporter logging to l.
func NewReporter(l logger.Logger) *Reporter {
	return &Reporter{logger: l}
}

// Rejected reports an action refused before anything was written.
func (r *Reporter) Rejected(ctx context.Context, f Failure) {
	reason := "invalid"
	switch {
	case errors.Is(f.Err, lifecycle.ErrIllegalTransition):
		reason = "illegal_transition"
	case errors.Is(f.Err, ErrActionInFlight), errors.Is(f.Err, inflight.ErrFull):
		reason = "in_flight"
	case errors.Is(f.Err, ErrForbidden):
		reason = "forbidden"
	case errors.Is(f.Err, ErrNotFound):
		reason = "not_found"
	}
	metrics.RecordTransitionRejected(f.Op, reason)
	r.logger.Debug(ctx, "action rejected",
		logger.String("venue_id", f.VenueID),
		logger.String("op", f.Op),
		logger.String("record_id", f.RecordID),
		logger.String("reason", reason),
		logger.Error(f.Err))
}

// WriteFailed reports a store write that was rolled back and returns the
// notice to show the user.
func (r *Reporter) WriteFailed(ctx context.Context, f Failure) Notice {
	metrics.RecordRollback(f.Op)
	notice := Notice{Level: "error", RecordID: f.RecordID}
	if errors.Is(f.Err, ErrNotFound) {
		metrics.RecordErrorByComponent("reconciler", "not_found")
		notice.Message = ErrNotFound.Error()
		r.logger.Warn(ctx, "record vanished during write",
			logger.String("venue_id", f.VenueID),
			logger.String("op", f.Op),
			logger.String("record_id", f.RecordID),
			logger.Error(f.Err))
		return notice
	}
	metrics.RecordErrorByComponent("reconciler", "remote_write")
	notice.Message = "Could not save your change. It has been undone, please try again."
	r.logger.Error(ctx, "remote write failed, rolled back",
		logger.String("venue_id", f.VenueID),
		logger.String("op", f.Op),
		logger.String("record_id", f.RecordID),
		logger.Error(f.Err))
	return notice
}

// FanoutFailed reports a downstream publish that failed after a commit.
// The commit stands; other instances catch up on their next refetch.
func (r *Reporter) FanoutFailed(ctx context.Context, sink string, f Failure) {
	metrics.RecordErrorByComponent(sink, "publish")
	r.logger.Warn(ctx, "fan-out failed",
		logger.String("sink", sink),
		logger.String("venue_id", f.VenueID),
		logger.String("op", f.Op),
		logger.String("record_id", f.RecordID),
		logger.Error(f.Err))
}

// RefetchFailed reports a venue reload that could not reach the store.
func (r *Reporter) RefetchFailed(ctx context.Context, f Failure) {
	metrics.RecordRefetch("failed")
	metrics.RecordErrorByComponent("reconciler", "refetch")
	r.logger.Warn(ctx, "refetch failed",
		logger.String("venue_id", f.VenueID),
		logger.Error(f.Err))
}

// ScheduleFailed reports a refetch job the queue refused.
func (r *Reporter) ScheduleFailed(ctx context.Context, venueID string) {
	metrics.RecordErrorByComponent("reconciler", "schedule")
	r.logger.Warn(ctx, "refetch not scheduled, queue full or closed",
		logger.String("venue_id", venueID))
}
