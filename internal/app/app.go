package app

import (
	"io"
	"log/slog"

	"github.com/vk/taproot/internal/registry"
)

// App ties a logger, an output stream and a registry together for one CLI
// invocation. Commands are methods on it.
type App struct {
	out      io.Writer
	logger   *slog.Logger
	registry *registry.Registry
}

// New creates an App. The logger writes to errW so command output on outW
// stays machine-consumable. Invalid logger settings fail construction.
func New(outW, errW io.Writer, logLevel, logFormat string, reg *registry.Registry) (*App, error) {
	logger, err := newLogger(logLevel, logFormat, errW)
	if err != nil {
		return nil, err
	}
	return &App{
		out:      outW,
		logger:   logger,
		registry: reg,
	}, nil
}

// Registry exposes the catalog the app was built with.
func (a *App) Registry() *registry.Registry { return a.registry }
