package store

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// ErrUnavailable wraps persistence failures. The in-flight operation is
// aborted and the live document keeps its previous contents.
var ErrUnavailable = errors.New("store unavailable")

// ErrNoChange signals Update that fn left the document unmodified; the clone
// is discarded and nothing is persisted.
var ErrNoChange = errors.New("no change")

// Store owns all mutable state behind one exclusive-access contract. Every
// read-modify-write runs inside a single Update critical section, so
// concurrent opens and sweeps serialize instead of interleaving.
type Store struct {
	mu        sync.RWMutex
	doc       *Document
	persister Persister
	seedFn    func() int64
}

func New(p Persister) (*Store, error) {
	doc, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if doc == nil {
		doc = NewDocument()
	}
	return &Store{
		doc:       doc,
		persister: p,
		seedFn: func() int64 {
			return rand.Int63n(99999) + 1
		},
	}, nil
}

// SetSeedSource overrides the pair-seed generator. Used by tests that need
// reproducible seed assignment.
func (s *Store) SetSeedSource(fn func() int64) {
	s.mu.Lock()
	s.seedFn = fn
	s.mu.Unlock()
}

// Update runs fn against a clone of the document, persists the clone and
// swaps it in. When fn or the persister fails the clone is discarded, so a
// failed operation leaves state byte-for-byte unchanged.
func (s *Store) Update(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	if err := s.persister.Save(next); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.doc = next
	return nil
}

// View gives fn read access to the live document. fn must not retain or
// mutate anything it reads; clone what needs to escape.
func (s *Store) View(fn func(doc *Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// EnsureSeed assigns the pair's seed on first reference and returns it. Must
// run inside an Update critical section so the assignment persists and all
// subsequent readers observe the same value.
func (s *Store) EnsureSeed(doc *Document, pair string) int64 {
	if seed, exists := doc.PairSeeds[pair]; exists {
		return seed
	}
	seed := s.seedFn()
	doc.PairSeeds[pair] = seed
	return seed
}
