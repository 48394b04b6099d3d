package test_setup

import (
	"runtime/debug"
	"sync"

	"github.com/hypernetix/weakling/libs/logging"
	"github.com/hypernetix/weakling/libs/utils"
)

var testEnvOnce sync.Once

// Unit tests helper

// InitTestEnv enables mutex debugging and trace logging, and turns off
// automatic collections so that referents die only on explicit collections.
// The in-memory log tail keeps the last 1000 messages.
func InitTestEnv() {
	testEnvOnce.Do(func() {
		utils.SetMutexDebug(true)

		logging.ForceLogLevel(logging.TraceLevel)
		logging.MainLogger.SetLastMessagesLimit(1000)

		debug.SetGCPercent(-1)

		logging.Trace("=============== Test env setup complete =================")
	})
}
