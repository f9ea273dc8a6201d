package safe

import (
	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/tools/errs"
)

// Go runs f in a goroutine and logs a recovered panic instead of crashing
// the process.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover is meant to be deferred at the top of long-lived goroutines.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("goroutine panic recovered", zap.String("goroutine", name), zap.Error(errs.ErrPanic(r)))
	}
}
