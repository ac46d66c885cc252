// Package storage defines the document and chunk persistence contract.
package storage

import (
	"context"
	"time"
)

// Document is a stored source file.
type Document struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ChunkCount is filled by ListDocuments and GetDocument.
	ChunkCount int `json:"chunk_count"`
}

// Chunk is a stored slice of a document's text. Embeddings are not loaded on
// read paths.
type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDocument carries the fields of a document to insert.
type NewDocument struct {
	Filename  string
	Filepath  string
	Checksum  string
	CreatedAt time.Time
}

// NewChunk carries a chunk and its embedding to insert.
type NewChunk struct {
	Index      int
	Content    string
	TokenCount int
	StartChar  int
	EndChar    int
	Embedding  []float32
}

// MetadataUpdate changes a document row. Nil fields are left untouched;
// UpdatedAt is always written.
type MetadataUpdate struct {
	Filename  *string
	Filepath  *string
	Checksum  *string
	UpdatedAt time.Time
}

// ChunkMatch is one nearest-neighbour hit. Distance is the engine's cosine
// distance, nominally in [0, 2].
type ChunkMatch struct {
	ChunkID    int64
	DocumentID int64
	Index      int
	Content    string
	TokenCount int
	Filename   string
	Distance   float64
}

// Stats summarizes store contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Store persists documents and their chunks. Every multi-row write is a
// single transaction: either all of it is visible or none of it is.
type Store interface {
	// ExistsByChecksum reports whether any document has the checksum.
	ExistsByChecksum(ctx context.Context, checksum string) (bool, error)

	// ChecksumOwner returns the id of the document holding checksum.
	ChecksumOwner(ctx context.Context, checksum string) (int64, bool, error)

	// InsertDocument stores a document and all of its chunks atomically and
	// returns the new document id. A checksum collision returns DuplicateError.
	InsertDocument(ctx context.Context, doc NewDocument, chunks []NewChunk) (int64, error)

	// GetDocument returns NotFoundError for unknown ids.
	GetDocument(ctx context.Context, id int64) (*Document, error)

	// ListDocuments pages through documents, newest first, and returns the
	// total document count.
	ListDocuments(ctx context.Context, page, perPage int) ([]Document, int, error)

	// GetChunks returns a document's chunks ordered by index.
	GetChunks(ctx context.Context, documentID int64) ([]Chunk, error)

	// DeleteDocument removes the document, its chunks and their vectors in
	// one transaction and returns the removed row.
	DeleteDocument(ctx context.Context, id int64) (*Document, error)

	// ReplaceChunks deletes every chunk of the document, inserts chunks and
	// applies update in one transaction.
	ReplaceChunks(ctx context.Context, id int64, chunks []NewChunk, update MetadataUpdate) error

	// UpdateDocumentMetadata applies update to the document row.
	UpdateDocumentMetadata(ctx context.Context, id int64, update MetadataUpdate) error

	// SearchChunks returns up to topK chunks nearest to vector by cosine
	// distance, ordered by distance then chunk id.
	SearchChunks(ctx context.Context, vector []float32, topK int) ([]ChunkMatch, error)

	// Stats returns document and chunk totals.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}
