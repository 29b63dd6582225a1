package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or has expired.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidDefinition is returned when a quiz definition fails structural checks.
	ErrInvalidDefinition = errors.New("invalid quiz definition")
	// ErrFieldNotFound indicates an answer targets a field the quiz does not define.
	ErrFieldNotFound = errors.New("field not found")
	// ErrFieldNotOnStep indicates an answer targets a field outside the visible step.
	ErrFieldNotOnStep = errors.New("field is not on the current step")
	// ErrUnknownOption indicates a choice value that is not one of the field's options.
	ErrUnknownOption = errors.New("unknown option")
	// ErrTooManyValues is returned when a single-value field receives several values.
	ErrTooManyValues = errors.New("field accepts a single value")
	// ErrNotActive is returned for navigation or edits outside the active state.
	ErrNotActive = errors.New("quiz session is not active")
	// ErrNotAtLastStep is returned when submit is pressed before the last step.
	ErrNotAtLastStep = errors.New("submit is only available on the last step")
	// ErrSubmissionInFlight guards against duplicate record-store inserts.
	ErrSubmissionInFlight = errors.New("submission already in progress")
	// ErrAlreadySubmitted is returned once a session has succeeded.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrNothingToRetry is returned when retry is requested outside the failed state.
	ErrNothingToRetry = errors.New("no failed submission to retry")
	// ErrSubmitTimeout is the reason recorded when the record store does not answer in time.
	ErrSubmitTimeout = errors.New("record store timed out")
)

// ValidationError reports the required fields of a step that are still empty.
// It never ends a session; navigation is simply blocked.
type ValidationError struct {
	StepIndex int
	Fields    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d has missing required fields: %s", e.StepIndex, strings.Join(e.Fields, ", "))
}

// FirstField is the field the caller should focus.
func (e *ValidationError) FirstField() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0]
}

// SubmissionError wraps a failed record-store insert. Reason is safe to show to the user.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Reason == "" {
		return "submission failed"
	}
	return "submission failed: " + e.Reason
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NotificationError wraps a failed best-effort notification. It is logged only.
type NotificationError struct {
	Channel string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s notification failed: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
