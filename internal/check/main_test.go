package check

import (
	"testing"

	"go.uber.org/goleak"
)

// Timed-out rules keep running in their own goroutine until they return;
// every test must release them before it ends.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
