// Package metastore is a content-addressed store for metadata documents.
// Documents are opaque bytes; the store hands back a cid: URI derived from
// the document's SHA-256 digest, suitable for use as a ticket's metadata
// URI. The store never parses document contents.
package metastore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned when no document exists for a URI.
var ErrNotFound = errors.New("metastore: document not found")

// ErrInvalidURI is returned when a URI is not a cid: URI.
var ErrInvalidURI = errors.New("metastore: not a cid URI")

// Scheme prefixes every URI issued by the store.
const Scheme = "cid:"

// Store holds documents keyed by content digest. Storing the same bytes
// twice yields the same URI and keeps a single copy.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Put stores a document and returns its cid: URI.
func (s *Store) Put(doc []byte) string {
	hash := sha256.Sum256(doc)
	digest := hex.EncodeToString(hash[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[digest]; !ok {
		stored := make([]byte, len(doc))
		copy(stored, doc)
		s.docs[digest] = stored
	}
	return Scheme + digest
}

// Get returns a copy of the document for a URI.
func (s *Store) Get(uri string) ([]byte, error) {
	digest, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[digest]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// Has reports whether a document exists for the URI.
func (s *Store) Has(uri string) bool {
	digest, err := parseURI(uri)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[digest]
	return ok
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func parseURI(uri string) (string, error) {
	digest, ok := strings.CutPrefix(uri, Scheme)
	if !ok || len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return digest, nil
}
