package testutil

import (
	"testing"
	"time"
)

// Eventually polls fn every interval until it returns nil, failing t with the
// last error once timeout has passed. fn always runs at least once.
func Eventually(t testing.TB, timeout time.Duration, interval time.Duration, fn func() error) {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	attempts := 0
	for {
		attempts++
		err := fn()
		if err == nil {
			return
		}
		select {
		case <-deadline.C:
			t.Fatalf("condition not met after %d attempts in %s: %v", attempts, timeout, err)
			return
		case <-tick.C:
		}
	}
}
