package main

import (
	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/metrics"
	"github.com/torosent/trafficgen/internal/worker"
)

// failureLogger writes one warning per failed action when --log-errors is set.
type failureLogger struct {
	logger *zap.Logger
}

func (l *failureLogger) Report(e worker.Event) {
	if e.Err == nil || e.Stopped {
		return
	}
	fields := []zap.Field{
		zap.Int("worker", e.Worker),
		zap.String("action", string(e.Kind)),
		zap.String("code", metrics.FailureCode(e.Err)),
		zap.Error(e.Err),
	}
	if e.Target != "" {
		fields = append(fields, zap.String("target", e.Target))
	}
	if e.Server != "" {
		fields = append(fields, zap.String("server", e.Server))
	}
	l.logger.Warn("action failed", fields...)
}
