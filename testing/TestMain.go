// Package testing forces test mode before any package under test runs
// its setup. Handler tests import it blank so the runtime guards in
// cmd binaries and app stay inert.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/aegis-admin/aegis/internal/app"
	_ "github.com/aegis-admin/aegis/internal/testing/guard"
)

func init() {
	// The guard's init already set AEGIS_TEST_MODE; refresh the cached
	// flag in case app read the environment first.
	app.RefreshTestMode()
}

func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
