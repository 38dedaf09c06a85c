// Package store persists processed documents: their sections, chunks and
// the content hash used for de-duplication.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// ErrNotFound is returned when a document or hash is not stored.
var ErrNotFound = errors.New("document not found")

// RetryableError marks a transient backend failure worth retrying.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return "retryable: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is, or wraps, a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Record is one processed document.
type Record struct {
	DocID        string            `json:"doc_id" bson:"_id"`
	Filename     string            `json:"filename" bson:"filename"`
	Title        string            `json:"title" bson:"title"`
	Source       string            `json:"source" bson:"source"`
	ContentHash  string            `json:"content_hash" bson:"content_hash"`
	Mode         string            `json:"mode" bson:"mode"`
	PageCount    int               `json:"page_count" bson:"page_count"`
	SectionCount int               `json:"section_count" bson:"section_count"`
	ChunkCount   int               `json:"chunk_count" bson:"chunk_count"`
	Sections     []doctree.Section `json:"sections,omitempty" bson:"sections,omitempty"`
	Chunks       []doctree.Chunk   `json:"chunks,omitempty" bson:"chunks,omitempty"`
	Markdown     string            `json:"markdown,omitempty" bson:"markdown,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}

// Summary drops the bulky fields of a record for listings.
func (r Record) Summary() Record {
	r.Sections = nil
	r.Chunks = nil
	r.Markdown = ""
	return r
}

// normalize fills the derived counters before a write.
func (r *Record) normalize() error {
	if r.DocID == "" {
		return fmt.Errorf("record has no doc id")
	}
	r.SectionCount = len(r.Sections)
	r.ChunkCount = len(r.Chunks)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Store is implemented by every persistence backend.
type Store interface {
	// Save creates or replaces the record with the same DocID.
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, docID string) (Record, error)
	// List returns summaries, newest first.
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, docID string) error
	// FindByHash returns the DocID stored with the given content hash.
	FindByHash(ctx context.Context, hash string) (string, error)
	Close(ctx context.Context) error
}

// Settings selects and configures a backend.
type Settings struct {
	Backend string // memory, mongo, postgres or pathstore

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	PostgresDSN string

	PathstoreURL    string
	PathstoreAPIKey string
	PathstorePrefix string

	// WriteConcurrency bounds parallel writes for backends that fan out.
	WriteConcurrency int
}

// Open connects to the configured backend.
func Open(ctx context.Context, s Settings) (Store, error) {
	switch s.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "mongo":
		return NewMongo(ctx, s.MongoURI, s.MongoDatabase, s.MongoCollection)
	case "postgres":
		return NewPostgres(ctx, s.PostgresDSN)
	case "pathstore":
		ps := NewPathstore(s.PathstoreURL, s.PathstoreAPIKey, s.PathstorePrefix)
		if s.WriteConcurrency > 0 {
			ps.WriteConcurrency = s.WriteConcurrency
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}
