package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rulekit/rulekit/internal/engine"
	"github.com/rulekit/rulekit/internal/value"
)

// factRecord is one entry of the JSON facts file: a {type, data} pair
// matching spec §6's "persisted state layout" for working-memory
// snapshots.
type factRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// loadFactsFile reads a JSON array of {"type": "...", "data": {...}}
// records and inserts each into eng's working memory.
func loadFactsFile(eng *engine.Engine, path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read facts file: %w", err)
	}
	var records []factRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("parse facts file: %w", err)
	}
	for _, r := range records {
		data, err := value.FromJSON(r.Data)
		if err != nil {
			return fmt.Errorf("fact %q: %w", r.Type, err)
		}
		if _, err := eng.Insert(r.Type, data); err != nil {
			return fmt.Errorf("insert fact %q: %w", r.Type, err)
		}
	}
	return nil
}
