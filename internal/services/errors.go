package services

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderDeclined means verification reported a terminal failure
	// from the payment provider. The transaction will not complete.
	ErrProviderDeclined = errors.New("payment declined by provider")

	// ErrAmbiguousOutcome means verification exhausted its attempt budget
	// without observing a terminal status. The outcome is unknown, not
	// failed: surface it as "check later", never as a decline.
	ErrAmbiguousOutcome = errors.New("payment outcome unknown, check later")

	// ErrVerificationInFlight means a verification loop is already running
	// for the session.
	ErrVerificationInFlight = errors.New("verification already in flight")

	// ErrUnknownSession means no session with the given reference is
	// tracked by this manager.
	ErrUnknownSession = errors.New("unknown payment session")
)

// NetworkError wraps a transport or HTTP failure reaching the giving API.
// It is surfaced to the user and never retried automatically.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
