package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Kind tags the artifact an index entry points at.
type Kind string

const (
	KindPricing     Kind = "pricing"
	KindPerformance Kind = "performance"
)

// Entry is one line of the run index.
type Entry struct {
	RunID     string    `json:"run_id"`
	Kind      Kind      `json:"kind"`
	File      string    `json:"file"`
	Timestamp time.Time `json:"timestamp"`
}

// Index is an append-only JSON lines log of persisted artifacts. Readers
// resolve "latest snapshot" and "all history" from it instead of sorting
// directory listings.
type Index struct {
	path string
}

func NewIndex(path string) *Index {
	return &Index{path: path}
}

func (ix *Index) Path() string { return ix.path }

// Exists reports whether the index file has been created.
func (ix *Index) Exists() (bool, error) {
	_, err := os.Stat(ix.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (ix *Index) Append(entries ...Entry) error {
	f, err := os.OpenFile(ix.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run index: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to append to run index: %w", err)
		}
	}
	return f.Sync()
}

// Entries returns every entry in append order. A missing index has no entries.
func (ix *Index) Entries() ([]Entry, error) {
	f, err := os.Open(ix.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run index: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("run index line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}
	return entries, nil
}

// Latest returns the most recently appended entry of kind.
func (ix *Index) Latest(kind Kind) (Entry, bool, error) {
	entries, err := ix.Entries()
	if err != nil {
		return Entry{}, false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == kind {
			return entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

// All returns every entry of kind in append order.
func (ix *Index) All(kind Kind) ([]Entry, error) {
	entries, err := ix.Entries()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}
