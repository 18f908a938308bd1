package worker

import (
	"errors"
	"fmt"
)

var (
	ErrInstallFailed = errors.New("worker install failed")
	ErrNotInstalled  = errors.New("worker not installed")
	ErrNotReady      = errors.New("worker not ready")
	ErrNoActive      = errors.New("no active worker")
	ErrUnderPressure = errors.New("too many superseded worker versions still draining")
)

// NetworkError reports that a request could not reach the network and no
// cached or offline response could stand in for it.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("network request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
