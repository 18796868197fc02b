package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/heartmarshall/brandkit/internal/domain"
)

// State is a step of a pipeline run.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateDuplicate    State = "DUPLICATE_SKIP"
	StateStale        State = "STALE_SKIP"
	StateInFlight     State = "IN_FLIGHT_SKIP"
	StateExtracting   State = "EXTRACTING"
	StateLogoFetch    State = "LOGO_FETCH"
	StateTransforming State = "TRANSFORMING"
	StateCustomizing  State = "CUSTOMIZING"
	StateDelivering   State = "DELIVERING"
	StateRecording    State = "RECORDING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED_RECORDED"
)

// Skipped reports whether the run ended without doing any work.
func (s State) Skipped() bool {
	return s == StateDuplicate || s == StateStale || s == StateInFlight
}

// Result describes how a run ended.
type Result struct {
	EventID string
	State   State
	BrandID string
	// Retryable is true when a later delivery of the same event may succeed.
	Retryable bool
}

// StageError is returned when a run fails. Stage is the state the run was in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", strings.ToLower(string(e.Stage)), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// retryable classifies a failure. Bad input stays bad on redelivery.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrAssetFetch):
		return false
	default:
		return true
	}
}
