// Package inmemory provides a map-backed storage.Store with brute-force
// cosine search. It is intended for development and tests.
package inmemory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/shelf/pkg/storage"
)

type chunkRow struct {
	storage.Chunk
	embedding []float32
}

// Driver implements storage.Store using in-memory maps.
type Driver struct {
	// mu guards every map below; writes take the exclusive lock for their
	// whole duration, which is what makes them atomic.
	mu sync.RWMutex

	nextDocID   int64
	nextChunkID int64

	docs       map[int64]*storage.Document
	checksums  map[string]int64
	chunksByID map[int64][]*chunkRow
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		docs:       make(map[int64]*storage.Document),
		checksums:  make(map[string]int64),
		chunksByID: make(map[int64][]*chunkRow),
	}
}

var _ storage.Store = (*Driver)(nil)

func (d *Driver) ExistsByChecksum(_ context.Context, checksum string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.checksums[checksum]
	return ok, nil
}

func (d *Driver) ChecksumOwner(_ context.Context, checksum string) (int64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.checksums[checksum]
	return id, ok, nil
}

func (d *Driver) InsertDocument(_ context.Context, doc storage.NewDocument, chunks []storage.NewChunk) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.checksums[doc.Checksum]; ok {
		return 0, storage.DuplicateError{Checksum: doc.Checksum}
	}

	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	d.nextDocID++
	id := d.nextDocID
	d.docs[id] = &storage.Document{
		ID:        id,
		Filename:  doc.Filename,
		Filepath:  doc.Filepath,
		Checksum:  doc.Checksum,
		CreatedAt: created,
		UpdatedAt: created,
	}
	d.checksums[doc.Checksum] = id
	d.chunksByID[id] = d.buildChunks(id, chunks, created)

	return id, nil
}

func (d *Driver) GetDocument(_ context.Context, id int64) (*storage.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.docs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	out := *doc
	out.ChunkCount = len(d.chunksByID[id])
	return &out, nil
}

func (d *Driver) ListDocuments(_ context.Context, page, perPage int) ([]storage.Document, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	all := make([]storage.Document, 0, len(d.docs))
	for id, doc := range d.docs {
		out := *doc
		out.ChunkCount = len(d.chunksByID[id])
		all = append(all, out)
	}
	slices.SortFunc(all, func(a, b storage.Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	_, perPage, offset := storage.NormalizePage(page, perPage)
	if offset >= len(all) {
		return []storage.Document{}, len(all), nil
	}
	end := min(offset+perPage, len(all))
	return all[offset:end], len(all), nil
}

func (d *Driver) GetChunks(_ context.Context, documentID int64) ([]storage.Chunk, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows := d.chunksByID[documentID]
	out := make([]storage.Chunk, len(rows))
	for i, r := range rows {
		out[i] = r.Chunk
	}
	return out, nil
}

func (d *Driver) DeleteDocument(_ context.Context, id int64) (*storage.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	delete(d.docs, id)
	delete(d.checksums, doc.Checksum)
	delete(d.chunksByID, id)

	out := *doc
	return &out, nil
}

func (d *Driver) ReplaceChunks(_ context.Context, id int64, chunks []storage.NewChunk, update storage.MetadataUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return storage.NotFoundError{ID: id}
	}
	if err := d.applyUpdate(doc, update); err != nil {
		return err
	}

	d.chunksByID[id] = d.buildChunks(id, chunks, doc.UpdatedAt)
	return nil
}

func (d *Driver) UpdateDocumentMetadata(_ context.Context, id int64, update storage.MetadataUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return storage.NotFoundError{ID: id}
	}
	return d.applyUpdate(doc, update)
}

func (d *Driver) SearchChunks(_ context.Context, vector []float32, topK int) ([]storage.ChunkMatch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []storage.ChunkMatch
	for docID, rows := range d.chunksByID {
		filename := d.docs[docID].Filename
		for _, r := range rows {
			matches = append(matches, storage.ChunkMatch{
				ChunkID:    r.ID,
				DocumentID: docID,
				Index:      r.Index,
				Content:    r.Content,
				TokenCount: r.TokenCount,
				Filename:   filename,
				Distance:   CosineDistance(vector, r.embedding),
			})
		}
	}

	slices.SortFunc(matches, func(a, b storage.ChunkMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (d *Driver) Stats(_ context.Context) (storage.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := storage.Stats{Documents: len(d.docs)}
	for _, rows := range d.chunksByID {
		stats.Chunks += len(rows)
	}
	return stats, nil
}

func (d *Driver) Close() error {
	return nil
}

// applyUpdate must be called with mu held for writing.
func (d *Driver) applyUpdate(doc *storage.Document, update storage.MetadataUpdate) error {
	if update.Checksum != nil && *update.Checksum != doc.Checksum {
		if owner, ok := d.checksums[*update.Checksum]; ok && owner != doc.ID {
			return storage.DuplicateError{Checksum: *update.Checksum}
		}
		delete(d.checksums, doc.Checksum)
		doc.Checksum = *update.Checksum
		d.checksums[doc.Checksum] = doc.ID
	}
	if update.Filename != nil {
		doc.Filename = *update.Filename
	}
	if update.Filepath != nil {
		doc.Filepath = *update.Filepath
	}

	updated := update.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	doc.UpdatedAt = updated
	return nil
}

// buildChunks must be called with mu held for writing.
func (d *Driver) buildChunks(docID int64, chunks []storage.NewChunk, created time.Time) []*chunkRow {
	rows := make([]*chunkRow, len(chunks))
	for i, c := range chunks {
		d.nextChunkID++
		rows[i] = &chunkRow{
			Chunk: storage.Chunk{
				ID:         d.nextChunkID,
				DocumentID: docID,
				Index:      c.Index,
				Content:    c.Content,
				TokenCount: c.TokenCount,
				StartChar:  c.StartChar,
				EndChar:    c.EndChar,
				CreatedAt:  created,
			},
			embedding: slices.Clone(c.Embedding),
		}
	}
	slices.SortFunc(rows, func(a, b *chunkRow) int { return cmp.Compare(a.Index, b.Index) })
	return rows
}

// CosineDistance returns 1 - cos(a, b). Mismatched or zero vectors are
// treated as orthogonal.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
