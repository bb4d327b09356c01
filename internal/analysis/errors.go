package analysis

import (
	"github.com/mealsnap/mealsnap-go/internal/errors"
)

var (
	// ErrRecognitionFailed means no food could be identified in the photo.
	ErrRecognitionFailed = errors.NewStd("no food recognized")
	// ErrNoImage is returned by Analyze when nothing has been captured.
	ErrNoImage = errors.NewStd("no image to analyze")
	// ErrBusy is returned while an analysis or save is in progress.
	ErrBusy = errors.NewStd("pipeline is busy")
	// ErrInvalidTransition is returned for operations not allowed in the current state.
	ErrInvalidTransition = errors.NewStd("operation not allowed in current state")
)

// UnderlyingError wraps an unexpected failure from a collaborator.
type UnderlyingError struct {
	Cause error
}

func (e *UnderlyingError) Error() string {
	if e.Cause == nil {
		return "analysis failed"
	}
	return "analysis failed: " + e.Cause.Error()
}

func (e *UnderlyingError) Unwrap() error {
	return e.Cause
}

// User facing messages shown in the Failed state.
const (
	MessageNoImage           = "No photo to analyze. Capture a photo first."
	MessageRecognitionFailed = "We couldn't identify any food in this photo. Try another angle or better light."
	MessageSaveFailed        = "The meal could not be saved. Please try again."
	MessageGeneric           = "Something went wrong. Please try again."
)

// FailureMessage picks the user facing message for err.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoImage):
		return MessageNoImage
	case errors.Is(err, ErrRecognitionFailed):
		return MessageRecognitionFailed
	default:
		return MessageGeneric
	}
}

func stateError(sentinel error, op string, state State) error {
	return errors.New(sentinel).
		Component("analysis").
		Category(errors.CategoryState).
		Context("operation", op).
		Context("state", state.String()).
		Build()
}
