package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persister is the pluggable persistence contract: whole-document load and
// save. Atomicity across entities comes from the Store's critical sections,
// so any key-value or document backend can sit behind this.
type Persister interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

// FilePersister keeps the document as one JSON file. Writes go to a temp
// file first and are renamed into place, so a crash mid-write leaves the
// previous snapshot intact (last-write-wins, per the persistence contract).
type FilePersister struct {
	path string
}

func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FilePersister{path: filepath.Join(dir, "data.json")}, nil
}

func (p *FilePersister) Load() (*Document, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*User)
	}
	if doc.PairSeeds == nil {
		doc.PairSeeds = make(map[string]int64)
	}
	return &doc, nil
}

func (p *FilePersister) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

// MemoryPersister discards everything. Used when no data dir is configured
// and in tests.
type MemoryPersister struct{}

func (MemoryPersister) Load() (*Document, error) { return NewDocument(), nil }

func (MemoryPersister) Save(*Document) error { return nil }
