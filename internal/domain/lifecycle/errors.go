package lifecycle

import (
	"errors"
	"fmt"

	"github.com/okian/gigbook/internal/domain/model"
)

// ErrIllegalTransition is matched by every *TransitionError.
var ErrIllegalTransition = errors.New("illegal booking transition")

// TransitionError reports an action that is not legal from the booking's
// current status.
type TransitionError struct {
	BookingID string
	From      model.BookingStatus
	Action    Action
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("booking %s: cannot %s from %s", e.BookingID, e.Action, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrIllegalTransition) true.
func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
