package app

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/vk/taproot/internal/settings"
)

// loadEnvironment snapshots the process environment once and overlays env
// files on top, later files winning. The process environment itself is
// never modified.
func loadEnvironment(envFiles []string) (settings.Environment, error) {
	env := settings.FromOS()
	for _, path := range envFiles {
		vars, err := godotenv.Read(path)
		if err != nil {
			return settings.Environment{}, fmt.Errorf("env file %s: %w", path, err)
		}
		env = env.Overlay(vars)
	}
	return env, nil
}
