package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode keeps binaries from starting servers or dialing Redis while their packages are tested.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("CLOSUREWATCH_TEST_MODE", "1")
		if os.Getenv("STORE_DRIVER") == "" {
			_ = os.Setenv("STORE_DRIVER", "memory")
		}
		if os.Getenv("CLOSUREWATCH_ENV_FILE") == "" {
			_ = os.Setenv("CLOSUREWATCH_ENV_FILE", os.DevNull)
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
