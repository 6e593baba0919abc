package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dexagent/internal/domain"
)

// WriteSnapshot persists the portfolio snapshot as indented JSON. The write
// goes through a temp file and rename so a crash mid-write never leaves a
// truncated snapshot behind.
func WriteSnapshot(path string, snap domain.PortfolioSnapshot) error {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. Used by tooling
// to inspect the last persisted state; the agent itself never reads it back.
func ReadSnapshot(path string) (domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	body, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}
