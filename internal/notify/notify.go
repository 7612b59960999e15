// Package notify is the user-facing notification sink. Calls are
// fire-and-forget and never influence control flow.
package notify

import "go.uber.org/zap"

// Notifier accepts severity-tagged messages with optional structured context.
type Notifier interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Success(msg string, fields ...zap.Field)
}

// Zap routes notifications into a zap logger. Success has no zap level of
// its own, so it is written at info with a severity field.
type Zap struct {
	logger *zap.Logger
}

// NewZap returns a Notifier writing to logger. A nil logger discards everything.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger.Named("notify")}
}

func (z *Zap) Debug(msg string, fields ...zap.Field) { z.logger.Debug(msg, fields...) }
func (z *Zap) Info(msg string, fields ...zap.Field)  { z.logger.Info(msg, fields...) }
func (z *Zap) Warn(msg string, fields ...zap.Field)  { z.logger.Warn(msg, fields...) }
func (z *Zap) Error(msg string, fields ...zap.Field) { z.logger.Error(msg, fields...) }

func (z *Zap) Success(msg string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+1)
	all = append(all, fields...)
	z.logger.Info(msg, append(all, zap.String("severity", "success"))...)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Debug(string, ...zap.Field)   {}
func (Nop) Info(string, ...zap.Field)    {}
func (Nop) Warn(string, ...zap.Field)    {}
func (Nop) Error(string, ...zap.Field)   {}
func (Nop) Success(string, ...zap.Field) {}
