package middleware

import (
	"context"
	"time"

	"github.com/vk/taproot/internal/ctxlog"
)

// Timing logs the wall-clock duration of each step invocation, plus the
// per-phase split the executor reports.
type Timing struct{}

// NewTiming returns the timing middleware.
func NewTiming() *Timing { return &Timing{} }

// Name implements Middleware.
func (t *Timing) Name() string { return "timing" }

// Execute implements Middleware.
func (t *Timing) Execute(ctx context.Context, inv *Invocation, next Next) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("step", inv.Step.Name(), "run_id", inv.RunID)
	logger.Info("step starting")
	started := time.Now()

	res, err := next(ctx)

	elapsed := time.Since(started)
	if err != nil {
		logger.Error("step failed", "duration", elapsed, "error", err)
		return res, err
	}
	logger.Info("step finished",
		"duration", elapsed,
		"load", res.Load,
		"run", res.Run,
		"save", res.Save,
		"items", res.Items,
		"files", res.Files,
	)
	return res, nil
}
