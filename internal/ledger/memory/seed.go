package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"finboard/internal/core"
)

// NewFromFile creates a store seeded from a JSON document mapping user IDs
// to snapshots. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string]core.Snapshot
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for userID, snap := range seed {
		s.Seed(userID, snap)
	}
	return s, nil
}
