package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/logger"
)

// Logger is what the recovery handler needs to report a panic.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler recovers panics in background goroutines.
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler creates a handler that reports to the given logger.
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo runs fn in a goroutine with panic recovery.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recover("")
		fn()
	}()
}

// SafeGoWithContext runs fn with ctx in a goroutine with panic recovery.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.recover(" (with context)")
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recover(suffix string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in goroutine%s: %v\nstack trace:\n%s", suffix, r, debug.Stack())
	}
}

// logrusAdapter resolves the global logger lazily so it picks up logger.Init.
type logrusAdapter struct{}

func (logrusAdapter) Errorf(format string, args ...interface{}) {
	logger.Get().WithFields(logrus.Fields{"component": "goroutine"}).Errorf(format, args...)
}

// DefaultRecoveryHandler reports to the application logger.
var DefaultRecoveryHandler = NewRecoveryHandler(logrusAdapter{})

// SafeGo is the package-level shortcut for DefaultRecoveryHandler.SafeGo.
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext is the package-level shortcut for DefaultRecoveryHandler.SafeGoWithContext.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
