package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// Recoverable wraps fn so that a panic inside it is logged and returned as an
// error instead of crashing the process. Use it with errgroup.Group.Go.
func Recoverable(logger *zap.Logger, name string, fn func() error) func() error {
	return func() (err error) {
		// Recover any panic
		defer func() {
			if r := recover(); r != nil {
				logger.Error("recovered from panic", zap.String("task", name), zap.Any("panic", r))
				err = fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		return fn()
	}
}
