package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNotAuthenticated is returned when a trading call is made without an
// AUTHENTICATED session, or after the brokerage invalidated the session with
// a 401. The caller must run a fresh login URL + callback round trip.
var ErrNotAuthenticated = errors.New("broker session not authenticated")

// ErrOrderRejected marks a terminal rejection declared by the brokerage
// (insufficient margin, invalid instrument). Never retried.
var ErrOrderRejected = errors.New("order rejected by brokerage")

// ErrTransientUpstream marks a retryable network or brokerage failure
// (timeout, connection error, 5xx, rate limit).
var ErrTransientUpstream = errors.New("transient brokerage error")

// ErrOrderSubmissionFailed is returned when the retry ceiling is exhausted
// with the order's outcome unknown. The local order stays PENDING and the
// caller must reconcile via an order-status query.
var ErrOrderSubmissionFailed = errors.New("order submission failed, outcome unknown")

// SubmissionError carries the client request id of a failed submission so the
// caller can reconcile the order later.
type SubmissionError struct {
	ClientRequestID string
	Attempts        int
	Err             error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission failed after %d attempts (client_request_id=%s): %v",
		e.Attempts, e.ClientRequestID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return ErrOrderSubmissionFailed }

// apiError is the error envelope the Kite API returns alongside a non-2xx
// status.
type apiError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("kite api error %d (%s): %s", e.StatusCode, e.ErrorType, e.Message)
}

// classify maps a brokerage error onto the retry taxonomy. Every error is
// classified before a retry decision is made; a terminal rejection must never
// be retried.
func classify(err error) error {
	var api *apiError
	if errors.As(err, &api) {
		switch {
		case api.StatusCode == http.StatusUnauthorized || api.ErrorType == "TokenException":
			return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
		case api.StatusCode == http.StatusTooManyRequests || api.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrTransientUpstream, err)
		default:
			// Remaining 4xx responses are brokerage-declared and terminal.
			return fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransientUpstream, err)
	}

	// Unreachable host, reset connections and other transport failures.
	return fmt.Errorf("%w: %v", ErrTransientUpstream, err)
}

// retryable reports whether a classified error is eligible for retry.
func retryable(err error) bool {
	return errors.Is(err, ErrTransientUpstream)
}
