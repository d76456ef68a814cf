package spdmtest

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies every responder loop spun up by a test pair has exited
// by the time the package finishes.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
