// Package progress carries fire-and-forget progress updates to whatever renders them.
package progress

import (
	"log/slog"
	"math"
)

// Reporter receives progress updates. Implementations must not block.
type Reporter interface {
	Report(percent float64, message string)
}

// Func adapts a function to Reporter.
type Func func(percent float64, message string)

func (f Func) Report(percent float64, message string) {
	f(percent, message)
}

// Nop discards every update.
type Nop struct{}

func (Nop) Report(float64, string) {}

// Log writes updates to a slog logger at Info level.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Report(percent float64, message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(message, slog.Int("percent", int(math.Round(percent))))
}

// Percent returns done/total as a percentage clamped to [0, 100].
func Percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(done) / float64(total) * 100
	return math.Max(0, math.Min(100, p))
}
