package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIngested is emitted after a new document is committed.
	EventTypeDocumentIngested = "shelf.document.ingested"

	// EventTypeDocumentReuploaded is emitted after a reupload is committed.
	EventTypeDocumentReuploaded = "shelf.document.reuploaded"

	// EventTypeDocumentDeleted is emitted after a document is removed.
	EventTypeDocumentDeleted = "shelf.document.deleted"
)

// DocumentEvent is a transport-neutral payload describing a committed change
// to a document.
type DocumentEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Document      DocumentMeta  `json:"document"`
	Embedding     *EmbeddingUse `json:"embedding,omitempty"`
}

// DocumentMeta identifies the document the event is about.
type DocumentMeta struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Chunks   int    `json:"chunks"`

	// Mode is "refresh" or "replace" for reupload events.
	Mode string `json:"mode,omitempty"`
}

// EmbeddingUse carries the usage the change cost.
type EmbeddingUse struct {
	Model    string  `json:"model"`
	Tokens   int     `json:"tokens"`
	Requests int     `json:"requests"`
	CostUSD  float64 `json:"cost_usd"`
}

// NewDocumentEvent stamps a payload with schema, id and time.
func NewDocumentEvent(eventType string, doc DocumentMeta, use *EmbeddingUse) *DocumentEvent {
	return &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Document:      doc,
		Embedding:     use,
	}
}
