// Package documents runs the upload, reupload and delete lifecycle of stored
// documents: extraction, chunking, embedding, persistence and file cleanup.
package documents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/shelf/pkg/chunker"
	"github.com/papercomputeco/shelf/pkg/embeddings/orchestrator"
	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/eventstream"
	"github.com/papercomputeco/shelf/pkg/extract"
	"github.com/papercomputeco/shelf/pkg/filestore"
	"github.com/papercomputeco/shelf/pkg/storage"
	"github.com/papercomputeco/shelf/pkg/telemetry"
	"github.com/papercomputeco/shelf/pkg/utils"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes = 16 << 20

const (
	ModeRefresh = "refresh"
	ModeReplace = "replace"
)

// Splitter partitions extracted text into drafts.
type Splitter interface {
	Chunk(text string) []chunker.Draft
}

// ChunkEmbedder attaches a vector to every draft.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, drafts []chunker.Draft) ([]orchestrator.Embedded, orchestrator.Usage, error)
}

// Config configures a Service.
type Config struct {
	Store     storage.Store
	Files     filestore.Store
	Extractor extract.Extractor
	Splitter  Splitter
	Embedder  ChunkEmbedder

	// Publisher receives lifecycle events after commit. Optional.
	Publisher eventstream.Publisher

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// AllowedExtensions restricts uploads when non-empty. Entries are
	// lowercase without the dot.
	AllowedExtensions []string

	// MaxBytes caps upload size. Defaults to DefaultMaxBytes.
	MaxBytes int64

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service owns the document lifecycle.
type Service struct {
	store     storage.Store
	files     filestore.Store
	extractor extract.Extractor
	splitter  Splitter
	embedder  ChunkEmbedder
	publisher eventstream.Publisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	allowed   []string
	maxBytes  int64
	now       func() time.Time
}

// UploadResult describes a newly stored document.
type UploadResult struct {
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	Checksum   string `json:"checksum"`
	Chunks     int    `json:"chunks"`
}

// ReuploadResult describes a refreshed or replaced document.
type ReuploadResult struct {
	DocumentID    int64  `json:"document_id"`
	Filename      string `json:"filename"`
	Checksum      string `json:"checksum"`
	ChunksUpdated int    `json:"chunks_updated"`
	Mode          string `json:"mode"`
}

// Page is one page of the document listing.
type Page struct {
	Documents []storage.Document `json:"documents"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
	Pages     int                `json:"pages"`
}

func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, errs.New(errs.KindConfiguration, "document service requires a store")
	case cfg.Files == nil:
		return nil, errs.New(errs.KindConfiguration, "document service requires a file store")
	case cfg.Extractor == nil:
		return nil, errs.New(errs.KindConfiguration, "document service requires an extractor")
	case cfg.Splitter == nil:
		return nil, errs.New(errs.KindConfiguration, "document service requires a chunker")
	case cfg.Embedder == nil:
		return nil, errs.New(errs.KindConfiguration, "document service requires an embedder")
	}

	s := &Service{
		store:     cfg.Store,
		files:     cfg.Files,
		extractor: cfg.Extractor,
		splitter:  cfg.Splitter,
		embedder:  cfg.Embedder,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		maxBytes:  cfg.MaxBytes,
		now:       cfg.Now,
	}
	for _, ext := range cfg.AllowedExtensions {
		s.allowed = append(s.allowed, strings.TrimPrefix(strings.ToLower(ext), "."))
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	if s.metrics == nil {
		s.metrics = telemetry.Nop()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "documents")
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// MaxBytes returns the upload size limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload ingests a new document. Identical content already on file is
// rejected as a duplicate and nothing is written.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (res *UploadResult, err error) {
	defer func() { s.observe("upload", err) }()

	name, err := s.accept(filename, data)
	if err != nil {
		return nil, err
	}
	checksum := utils.Checksum(data)
	log := s.logger.With("filename", name, "checksum", checksum)
	log.Debug("upload received", "bytes", len(data))

	exists, err := s.store.ExistsByChecksum(ctx, checksum)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "checking checksum", err)
	}
	if exists {
		return nil, errs.New(errs.KindDuplicate, "a document with identical content already exists")
	}

	path, err := s.files.Save(ctx, data, name)
	if err != nil {
		return nil, errs.Wrap(errs.KindUpload, "saving uploaded file", err)
	}
	committed := false
	defer func() {
		if !committed {
			s.removeFile(log, path)
		}
	}()

	chunks, usage, err := s.prepare(ctx, log, data, name)
	if err != nil {
		return nil, err
	}

	id, err := s.store.InsertDocument(ctx, storage.NewDocument{
		Filename:  name,
		Filepath:  path,
		Checksum:  checksum,
		CreatedAt: s.now().UTC(),
	}, chunks)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, errs.Wrap(errs.KindDuplicate, "a document with identical content already exists", err)
		}
		return nil, errs.Wrap(errs.KindPersistence, "storing document", err)
	}
	committed = true
	log.Debug("upload persisted", "document_id", id, "chunks", len(chunks))

	s.publish(ctx, eventstream.EventTypeDocumentIngested, eventstream.DocumentMeta{
		ID: id, Filename: name, Checksum: checksum, Chunks: len(chunks),
	}, usage)

	return &UploadResult{DocumentID: id, Filename: name, Checksum: checksum, Chunks: len(chunks)}, nil
}

// Reupload re-ingests document id from data. Identical content refreshes the
// chunks in place; different content replaces them together with the
// filename and checksum, unless another document already holds that content.
// The new file is written before the transaction and the old file is removed
// only after it commits.
func (s *Service) Reupload(ctx context.Context, id int64, filename string, data []byte) (res *ReuploadResult, err error) {
	defer func() { s.observe("reupload", err) }()

	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, classifyRead(err, "loading document")
	}

	if strings.TrimSpace(filename) == "" {
		filename = doc.Filename
	}
	name, err := s.accept(filename, data)
	if err != nil {
		return nil, err
	}

	checksum := utils.Checksum(data)
	mode := ModeReplace
	if checksum == doc.Checksum {
		mode = ModeRefresh
		name = doc.Filename
	} else {
		owner, found, err := s.store.ChecksumOwner(ctx, checksum)
		if err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "checking checksum", err)
		}
		if found && owner != id {
			return nil, errs.New(errs.KindDuplicate, "another document with identical content already exists")
		}
	}

	log := s.logger.With("document_id", id, "filename", name, "checksum", checksum, "mode", mode)
	log.Debug("reupload checksum compared")

	path, err := s.files.Save(ctx, data, name)
	if err != nil {
		return nil, errs.Wrap(errs.KindUpload, "saving uploaded file", err)
	}
	committed := false
	defer func() {
		if !committed {
			s.removeFile(log, path)
		}
	}()

	chunks, usage, err := s.prepare(ctx, log, data, name)
	if err != nil {
		return nil, err
	}

	update := storage.MetadataUpdate{
		Filepath:  &path,
		UpdatedAt: s.nextUpdate(doc.UpdatedAt),
	}
	if mode == ModeReplace {
		update.Filename = &name
		update.Checksum = &checksum
	}

	if err := s.store.ReplaceChunks(ctx, id, chunks, update); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, errs.Wrap(errs.KindNotFound, "document not found", err)
		case errors.Is(err, storage.ErrDuplicate):
			return nil, errs.Wrap(errs.KindDuplicate, "another document with identical content already exists", err)
		default:
			return nil, errs.Wrap(errs.KindPersistence, "replacing chunks", err)
		}
	}
	committed = true
	log.Debug("reupload persisted", "chunks", len(chunks))

	if doc.Filepath != "" && doc.Filepath != path {
		s.removeFile(log, doc.Filepath)
	}

	s.publish(ctx, eventstream.EventTypeDocumentReuploaded, eventstream.DocumentMeta{
		ID: id, Filename: name, Checksum: checksum, Chunks: len(chunks), Mode: mode,
	}, usage)

	return &ReuploadResult{
		DocumentID:    id,
		Filename:      name,
		Checksum:      checksum,
		ChunksUpdated: len(chunks),
		Mode:          mode,
	}, nil
}

// Delete removes a document, its chunks and its stored file.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.observe("delete", err) }()

	doc, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return classifyRead(err, "deleting document")
	}

	log := s.logger.With("document_id", id, "filename", doc.Filename)
	if doc.Filepath != "" {
		s.removeFile(log, doc.Filepath)
	}
	log.Debug("document deleted")

	s.publish(ctx, eventstream.EventTypeDocumentDeleted, eventstream.DocumentMeta{
		ID: id, Filename: doc.Filename, Checksum: doc.Checksum, Chunks: doc.ChunkCount,
	}, nil)
	return nil
}

// List returns one page of documents, newest first. Zero values select the
// defaults.
func (s *Service) List(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 0 || perPage < 0 || perPage > storage.MaxPerPage {
		return nil, errs.Newf(errs.KindInvalidRequest, "page must be >= 1 and per_page between 1 and %d", storage.MaxPerPage)
	}
	page, perPage, _ = storage.NormalizePage(page, perPage)

	docs, total, err := s.store.ListDocuments(ctx, page, perPage)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "listing documents", err)
	}
	if docs == nil {
		docs = []storage.Document{}
	}

	return &Page{
		Documents: docs,
		Total:     total,
		Page:      page,
		PerPage:   perPage,
		Pages:     (total + perPage - 1) / perPage,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*storage.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, classifyRead(err, "loading document")
	}
	return doc, nil
}

// Chunks returns a document's chunks in index order.
func (s *Service) Chunks(ctx context.Context, id int64) ([]storage.Chunk, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, classifyRead(err, "loading document")
	}
	chunks, err := s.store.GetChunks(ctx, id)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "loading chunks", err)
	}
	if chunks == nil {
		chunks = []storage.Chunk{}
	}
	return chunks, nil
}

// Open returns the stored file of a document. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id int64) (io.ReadCloser, *storage.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, classifyRead(err, "loading document")
	}
	if !s.files.Exists(doc.Filepath) {
		return nil, nil, errs.New(errs.KindNotFound, "document file not found")
	}
	rc, err := s.files.Open(doc.Filepath)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindPersistence, "opening document file", err)
	}
	return rc, doc, nil
}

func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return storage.Stats{}, errs.Wrap(errs.KindPersistence, "loading stats", err)
	}
	return st, nil
}

// Extensions returns the accepted extensions, or nil when any extension the
// extractor supports is accepted.
func (s *Service) Extensions() []string {
	return slices.Clone(s.allowed)
}

// accept validates an upload's name and size and returns the sanitized name.
func (s *Service) accept(filename string, data []byte) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", errs.New(errs.KindUpload, "no file selected")
	}
	if int64(len(data)) > s.maxBytes {
		return "", errs.Newf(errs.KindUpload, "file exceeds the %d byte limit", s.maxBytes)
	}

	name := utils.SanitizeFilename(filename)
	if len(s.allowed) > 0 && !slices.Contains(s.allowed, utils.Extension(name)) {
		return "", errs.Newf(errs.KindExtraction, "file type not allowed; accepted: %s", strings.Join(s.allowed, ", "))
	}
	return name, nil
}

// prepare runs extraction, chunking and embedding.
func (s *Service) prepare(ctx context.Context, log *slog.Logger, data []byte, name string) ([]storage.NewChunk, *eventstream.EmbeddingUse, error) {
	text, err := s.extractor.Extract(data, name)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			return nil, nil, errs.Wrap(errs.KindExtraction, "unsupported file type", err)
		}
		return nil, nil, errs.Wrap(errs.KindExtraction, "could not extract text from file", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil, errs.New(errs.KindEmptyContent, "file contains no text")
	}
	log.Debug("text extracted", "runes", len([]rune(text)))

	drafts := s.splitter.Chunk(text)
	if len(drafts) == 0 {
		return nil, nil, errs.New(errs.KindEmptyContent, "file contains no text")
	}
	log.Debug("text chunked", "chunks", len(drafts))

	embedded, usage, err := s.embedder.EmbedChunks(ctx, drafts)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			return nil, nil, errs.Wrap(errs.KindExternalService, "embedding failed", err)
		}
		return nil, nil, err
	}
	log.Debug("chunks embedded", "tokens", usage.Tokens, "requests", usage.Requests)

	chunks := make([]storage.NewChunk, len(embedded))
	for i, e := range embedded {
		chunks[i] = storage.NewChunk{
			Index:      e.Index,
			Content:    e.Text,
			TokenCount: e.TokenCount,
			StartChar:  e.StartChar,
			EndChar:    e.EndChar,
			Embedding:  e.Vector,
		}
	}

	return chunks, &eventstream.EmbeddingUse{
		Model:    usage.Model,
		Tokens:   usage.Tokens,
		Requests: usage.Requests,
		CostUSD:  usage.Cost,
	}, nil
}

// nextUpdate returns a microsecond-precision timestamp strictly after prev.
func (s *Service) nextUpdate(prev time.Time) time.Time {
	next := s.now().UTC().Truncate(time.Microsecond)
	if !next.After(prev) {
		next = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return next
}

func (s *Service) removeFile(log *slog.Logger, path string) {
	if err := s.files.Delete(path); err != nil {
		log.Warn("failed to remove stored file", "path", path, "error", err)
	}
}

// publish is observational; failures are logged and never fail the operation.
func (s *Service) publish(ctx context.Context, eventType string, doc eventstream.DocumentMeta, use *eventstream.EmbeddingUse) {
	if s.publisher == nil {
		return
	}
	event := eventstream.NewDocumentEvent(eventType, doc, use)
	if err := s.publisher.PublishDocument(ctx, event); err != nil {
		s.logger.Warn("failed to publish document event",
			"event_type", eventType,
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func (s *Service) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(errs.KindOf(err)))
	}
	s.metrics.ObserveDocument(operation, outcome)
}

func classifyRead(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return errs.Wrap(errs.KindNotFound, "document not found", err)
	}
	return errs.Wrap(errs.KindPersistence, message, err)
}
