package audit

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// Verify walks the journal at path and reports the first entry that breaks
// the chain. An empty journal verifies.
func Verify(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	tip := newChain()
	for i, line := range records(data) {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", i+1, err)
		}
		if err := tip.advance(e); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// Tail returns the last n entries of the journal, or all of them when n is
// negative. Undecodable lines are skipped.
func Tail(fs afero.Fs, path string, n int) ([]Entry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	lines := records(data)
	if n >= 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
