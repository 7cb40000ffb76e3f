// Package apperr defines the error taxonomy shared by the assessment engine.
// Services wrap these sentinels with context via fmt.Errorf("...: %w", ...);
// controllers map them onto HTTP status codes with Status.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidState is returned when a transition is attempted from a state
	// that forbids it, e.g. publishing an already-published test.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument is returned for malformed or out-of-range input,
	// e.g. a start time in the past or a duration change below zero.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a referenced test, question, course or
	// attempt does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadySubmitted blocks retakes: the student already has a graded
	// attempt for the test.
	ErrAlreadySubmitted = errors.New("already submitted")

	// ErrWindowClosed is returned for actions attempted outside the test's
	// attemptable time window.
	ErrWindowClosed = errors.New("window closed")

	// ErrNotEnrolled is returned when a student acts on a course they are not
	// enrolled in.
	ErrNotEnrolled = errors.New("not enrolled")

	// ErrJobNotFound is returned by the scheduler when rescheduling a job id
	// that has no pending timer.
	ErrJobNotFound = errors.New("job not found")
)

// Status maps an engine error onto the HTTP status code controllers respond
// with. Unrecognized errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrWindowClosed), errors.Is(err, ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadySubmitted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
