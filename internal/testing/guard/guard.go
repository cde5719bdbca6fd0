// Package guard switches the process into test mode when imported for side
// effects, so binaries linked into tests never dial real infrastructure.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "LEDGERFLOW_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
