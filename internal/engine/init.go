package engine

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	initOnce    sync.Once
	diagnostics atomic.Pointer[logrus.Entry]
)

// Init installs log as the diagnostic hook that reports recovered panics.
// Calls after the first have no effect. A nil log disables reporting.
// Init does not change the result of any operation.
func Init(log *logrus.Logger) {
	initOnce.Do(func() {
		if log != nil {
			diagnostics.Store(logrus.NewEntry(log).WithField("component", "engine"))
		}
	})
}

// reportPanic reports a recovered panic in op through the diagnostic hook
// and converts it to an error.
func reportPanic(op string, r interface{}) error {
	if entry := diagnostics.Load(); entry != nil {
		entry.WithFields(logrus.Fields{
			"operation": op,
			"panic":     fmt.Sprint(r),
			"stack":     string(debug.Stack()),
		}).Error("Recovered panic")
	}
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, r)
}
