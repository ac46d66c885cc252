// Package sqlite provides a SQLite-backed storage.Store. Chunk vectors live in
// a sqlite-vec vec0 table keyed by chunk id and searched by cosine distance.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/shelf/pkg/storage"
)

// Config holds configuration for the SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding width. It is fixed when the vec0 table is
	// first created.
	Dimensions int
}

// Driver implements storage.Store using SQLite with sqlite-vec.
type Driver struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Driver)(nil)

// NewDriver opens (and if needed creates) the database at c.DBPath.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writers; a single connection also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if err := migrate(db, c.Dimensions); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite store initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{db: db, logger: logger}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	statements := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			filepath TEXT NOT NULL,
			checksum TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_created_at ON documents(created_at)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			start_char INTEGER NOT NULL,
			end_char INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(document_id, chunk_index)
		)`,
		fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
			dimensions,
		),
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

func (d *Driver) ExistsByChecksum(ctx context.Context, checksum string) (bool, error) {
	_, found, err := d.ChecksumOwner(ctx, checksum)
	return found, err
}

func (d *Driver) ChecksumOwner(ctx context.Context, checksum string) (int64, bool, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE checksum = ?`, checksum).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("looking up checksum: %w", err)
	}
	return id, true, nil
}

func (d *Driver) InsertDocument(ctx context.Context, doc storage.NewDocument, chunks []storage.NewChunk) (int64, error) {
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents(filename, filepath, checksum, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		doc.Filename, doc.Filepath, doc.Checksum, created, created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.DuplicateError{Checksum: doc.Checksum}
		}
		return 0, fmt.Errorf("inserting document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting document id: %w", err)
	}

	if err := insertChunks(ctx, tx, id, chunks, created); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("inserted document", "document_id", id, "chunks", len(chunks))
	return id, nil
}

func (d *Driver) GetDocument(ctx context.Context, id int64) (*storage.Document, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT d.id, d.filename, d.filepath, d.checksum, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		WHERE d.id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

func (d *Driver) ListDocuments(ctx context.Context, page, perPage int) ([]storage.Document, int, error) {
	_, perPage, offset := storage.NormalizePage(page, perPage)

	var total int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.filepath, d.checksum, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT ? OFFSET ?
	`, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []storage.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, total, nil
}

func (d *Driver) GetChunks(ctx context.Context, documentID int64) ([]storage.Chunk, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, token_count, start_char, end_char, created_at
		FROM chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("getting chunks: %w", err)
	}
	defer rows.Close()

	chunks := []storage.Chunk{}
	for rows.Next() {
		var c storage.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.TokenCount, &c.StartChar, &c.EndChar, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func (d *Driver) DeleteDocument(ctx context.Context, id int64) (*storage.Document, error) {
	doc, err := d.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChunks(ctx, tx, id); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, storage.NotFoundError{ID: id}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted document", "document_id", id)
	return doc, nil
}

func (d *Driver) ReplaceChunks(ctx context.Context, id int64, chunks []storage.NewChunk, update storage.MetadataUpdate) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	updated, err := applyUpdate(ctx, tx, id, update)
	if err != nil {
		return err
	}

	if err := deleteChunks(ctx, tx, id); err != nil {
		return err
	}
	if err := insertChunks(ctx, tx, id, chunks, updated); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("replaced chunks", "document_id", id, "chunks", len(chunks))
	return nil
}

func (d *Driver) UpdateDocumentMetadata(ctx context.Context, id int64, update storage.MetadataUpdate) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := applyUpdate(ctx, tx, id, update); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (d *Driver) SearchChunks(ctx context.Context, vector []float32, topK int) ([]storage.ChunkMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	// KNN via vec0 MATCH, then JOIN back to chunks and documents.
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count, d.filename, ce.distance
		FROM chunk_embeddings ce
		INNER JOIN chunks c ON c.id = ce.rowid
		INNER JOIN documents d ON d.id = c.document_id
		WHERE ce.embedding MATCH ?
			AND ce.k = ?
		ORDER BY ce.distance, c.id
	`, serializeFloat32(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	matches := []storage.ChunkMatch{}
	for rows.Next() {
		var m storage.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Index, &m.Content, &m.TokenCount, &m.Filename, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(matches))
	return matches, nil
}

func (d *Driver) Stats(ctx context.Context) (storage.Stats, error) {
	var s storage.Stats
	err := d.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM chunks)`,
	).Scan(&s.Documents, &s.Chunks)
	if err != nil {
		return s, fmt.Errorf("counting rows: %w", err)
	}
	return s, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*storage.Document, error) {
	var doc storage.Document
	if err := s.Scan(&doc.ID, &doc.Filename, &doc.Filepath, &doc.Checksum, &doc.CreatedAt, &doc.UpdatedAt, &doc.ChunkCount); err != nil {
		return nil, err
	}
	return &doc, nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, documentID int64, chunks []storage.NewChunk, created time.Time) error {
	for _, c := range chunks {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(document_id, chunk_index, content, token_count, start_char, end_char, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, documentID, c.Index, c.Content, c.TokenCount, c.StartChar, c.EndChar, created)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}

		chunkID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting chunk id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
			chunkID, serializeFloat32(c.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for chunk %d: %w", c.Index, err)
		}
	}
	return nil
}

// deleteChunks removes a document's chunks and their vectors. vec0 tables do
// not take part in foreign-key cascades, so vectors are removed by rowid.
func deleteChunks(ctx context.Context, tx *sql.Tx, documentID int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("querying chunk ids: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunk ids: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE rowid = ?`, id); err != nil {
			return fmt.Errorf("deleting embedding %d: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// applyUpdate writes update inside tx and returns the updated_at it stored.
func applyUpdate(ctx context.Context, tx *sql.Tx, id int64, update storage.MetadataUpdate) (time.Time, error) {
	updated := update.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	updated = updated.UTC()

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET
			filename = COALESCE(?, filename),
			filepath = COALESCE(?, filepath),
			checksum = COALESCE(?, checksum),
			updated_at = ?
		WHERE id = ?
	`, update.Filename, update.Filepath, update.Checksum, updated, id)
	if err != nil {
		if isUniqueViolation(err) && update.Checksum != nil {
			return updated, storage.DuplicateError{Checksum: *update.Checksum}
		}
		return updated, fmt.Errorf("updating document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return updated, storage.NotFoundError{ID: id}
	}
	return updated, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
