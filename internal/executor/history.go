package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// historyFile is written next to each step's artifact and records the chain
// of step names the data passed through, oldest first.
const historyFile = ".history"

func readHistory(location string) ([]string, error) {
	info, err := os.Stat(location)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(location, historyFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var crumbs []string
	if err := json.Unmarshal(data, &crumbs); err != nil {
		return nil, fmt.Errorf("corrupt history in %s: %w", location, err)
	}
	return crumbs, nil
}

func writeHistory(output string, crumbs []string) error {
	data, err := json.Marshal(crumbs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(output, historyFile), data, 0o644)
}

// mergeHistory appends entries not already present, preserving order of
// first appearance across multiple input branches.
func mergeHistory(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, c := range base {
		seen[c] = true
	}
	for _, c := range extra {
		if !seen[c] {
			base = append(base, c)
			seen[c] = true
		}
	}
	return base
}
