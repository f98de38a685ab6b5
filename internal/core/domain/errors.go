package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrTransient marks failures expected to resolve on retry (timeouts,
	// rate limits, connection resets).
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures retry cannot resolve (corrupt input,
	// unreadable encoding).
	ErrPermanent = errors.New("permanent failure")
	// ErrStatusConflict is returned by compare-and-set status transitions
	// when the stored status no longer matches the expected one.
	ErrStatusConflict = errors.New("status conflict")
	ErrCancelled      = errors.New("cancelled")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// StageError attributes a pipeline failure to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// FailedStageOf extracts the stage attribution from err, if any.
func FailedStageOf(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
