package transport

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package if any test leaks a goroutine, which would
// point at a receiver not released by Close.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
