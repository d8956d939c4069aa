package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSaveInProgress is returned when a save is requested while another runs.
	ErrSaveInProgress = errors.New("reconcile: save already in progress")
	// ErrNotEditing is returned by edit operations outside the editing state.
	ErrNotEditing = errors.New("reconcile: session is not editing")
	// ErrAlreadyEditing is returned when BeginEdit is called twice.
	ErrAlreadyEditing = errors.New("reconcile: session already editing")
	// ErrLineNotFound is returned when an edit names an unknown line.
	ErrLineNotFound = errors.New("reconcile: line not found")
	// ErrLineLocked is returned when quantity or price of a stored order line is edited.
	ErrLineLocked = errors.New("reconcile: stored order lines only accept removal")
	// ErrValidation marks input rejected before any storage call.
	ErrValidation = errors.New("reconcile: validation failed")
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Step names one storage phase of a save.
type Step string

const (
	StepDeleteItems  Step = "delete_items"
	StepInsertItems  Step = "insert_items"
	StepUpdateItems  Step = "update_items"
	StepUpdateHeader Step = "update_header"
	StepReconcile    Step = "reconcile"
)

// SaveError reports a failed save: the step that failed, the steps that had
// fully completed before it and how many individual writes were applied.
type SaveError struct {
	Variant   Variant
	Step      Step
	Completed []Step
	Applied   int
	Err       error
}

func (e *SaveError) Error() string {
	done := make([]string, len(e.Completed))
	for i, s := range e.Completed {
		done[i] = string(s)
	}
	return fmt.Sprintf("reconcile %s: %s failed (completed: [%s], applied writes: %d): %v",
		e.Variant, e.Step, strings.Join(done, " "), e.Applied, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Partial reports whether some writes reached storage before the failure.
func (e *SaveError) Partial() bool {
	return e.Applied > 0
}

// Toast renders err as a short message for the operator.
func Toast(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	switch {
	case errors.Is(err, ErrSaveInProgress):
		return "A save is already in progress."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Save was interrupted. Please try again."
	}
	var serr *SaveError
	if errors.As(err, &serr) {
		if serr.Partial() {
			return fmt.Sprintf("The %s was only partly saved. Please save again to finish.", serr.Variant.noun())
		}
		return fmt.Sprintf("Failed to save the %s. Please try again.", serr.Variant.noun())
	}
	return "Something went wrong. Please try again."
}
