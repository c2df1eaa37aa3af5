package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vlmcheck/internal/vlm"
)

// ValidationError reports bad caller input. No upstream call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

// InvalidOutputError reports a model reply that does not conform to
// ModelAnswer. Raw holds the offending text for logging.
type InvalidOutputError struct {
	Raw string
	Err error
}

func (e *InvalidOutputError) Error() string { return "invalid model output: " + e.Err.Error() }

func (e *InvalidOutputError) Unwrap() error { return e.Err }

// TooBusyError signals that no admission slot freed up within the queue timeout.
type TooBusyError struct {
	Wait time.Duration
}

func (e *TooBusyError) Error() string {
	return fmt.Sprintf("too busy: no verification slot within %s", e.Wait)
}

// IsValidation reports whether err indicates bad caller input (return 400).
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsInvalidModelOutput reports whether the model reply failed validation.
func IsInvalidModelOutput(err error) bool {
	var e *InvalidOutputError
	return errors.As(err, &e)
}

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e *TooBusyError
	return errors.As(err, &e)
}

// IsUpstreamUnavailable reports whether the model endpoint was unreachable
// or kept failing after retries (return 503).
func IsUpstreamUnavailable(err error) bool { return vlm.IsUnavailable(err) }

// IsUpstreamProtocol reports whether the model endpoint replied in an
// unexpected transport shape (return 503).
func IsUpstreamProtocol(err error) bool { return vlm.IsProtocol(err) }

// IsDeadline reports whether the caller's deadline ran out before the
// verification finished (return 504). Per-attempt upstream timeouts are
// reported as IsUpstreamUnavailable instead.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && !IsUpstreamUnavailable(err)
}

// IsCanceled reports whether err stems from the caller going away or its
// deadline passing.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StatusCode maps a verification error to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsTooBusy(err):
		return http.StatusTooManyRequests
	case IsUpstreamUnavailable(err), IsUpstreamProtocol(err):
		return http.StatusServiceUnavailable
	case IsDeadline(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-facing message for err. Internal details of
// server-side failures are not exposed.
func PublicMessage(err error) string {
	switch {
	case IsValidation(err), IsTooBusy(err):
		return err.Error()
	case IsUpstreamUnavailable(err), IsUpstreamProtocol(err):
		return "VLM service is currently unavailable. Please try again later."
	case IsDeadline(err):
		return "verification timed out"
	default:
		return "An unexpected error occurred during verification."
	}
}

// Outcome labels
const (
	OutcomeSuccess             = "success"
	OutcomeValidation          = "validation_error"
	OutcomeTooBusy             = "too_busy"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
	OutcomeUpstreamProtocol    = "upstream_protocol_error"
	OutcomeInvalidModelOutput  = "invalid_model_output"
	OutcomeTimeout             = "timeout"
	OutcomeCanceled            = "canceled"
	OutcomeError               = "error"
)

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsValidation(err):
		return OutcomeValidation
	case IsTooBusy(err):
		return OutcomeTooBusy
	case IsUpstreamUnavailable(err):
		return OutcomeUpstreamUnavailable
	case IsUpstreamProtocol(err):
		return OutcomeUpstreamProtocol
	case IsInvalidModelOutput(err):
		return OutcomeInvalidModelOutput
	case IsDeadline(err):
		return OutcomeTimeout
	case IsCanceled(err):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
