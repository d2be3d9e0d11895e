package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/taproot/internal/app"
	"github.com/vk/taproot/internal/cli"
)

// main is the entrypoint for the taproot binary.
func main() {
	// Use a minimal logger until a command configures the full one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	err := run(os.Stdout, os.Stderr, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}

// run wires the default registry into the CLI. Step definitions are
// registered here so a downstream build can add its own before dispatch.
func run(outW, errW io.Writer, args []string) error {
	reg := app.DefaultRegistry()
	return cli.Run(context.Background(), outW, errW, args, reg)
}
