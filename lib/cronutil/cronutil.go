package cronutil

import (
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// New returns a started cron scheduler that logs through slog.
func New() *cron.Cron {
	c := cron.New(cron.WithLogger(slogLogger{}))
	c.Start()
	return c
}

// SkipIfRunning wraps a job so that a tick arriving while the previous
// run is still in flight is dropped instead of overlapping it.
func SkipIfRunning(name string, job func()) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			slog.Warn("skipping scheduled run, previous one still in flight", "job", name)
			return
		}
		defer running.Store(false)
		job()
	}
}

type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"err", err}, keysAndValues...)
	slog.Error("cron: "+msg, args...)
}
