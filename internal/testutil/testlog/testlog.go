package testlog

import (
	"testing"

	"github.com/danmuck/bondx/internal/logging"
	"github.com/danmuck/bondx/internal/logs"
)

// Start configures the test log profile and tags output with the test name.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	logs.Infof("test=%s", t.Name())
}
