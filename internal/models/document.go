package models

import (
	"time"
)

// DocumentStatus represents the backend-owned lifecycle state of a document.
// Transitions are driven exclusively by the backend processing pipeline and
// observed by this client through refreshes; the client never forces one.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// IsTerminal returns true if no further status transition will occur.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusDisplay is presentation-only derived data for a status value.
// It is computed on demand and never stored alongside the document.
type StatusDisplay struct {
	Class string `json:"class"`
	Glyph string `json:"glyph"`
}

// statusDisplays maps each known status to its fixed display class and glyph.
var statusDisplays = map[DocumentStatus]StatusDisplay{
	StatusPending:    {Class: "pending", Glyph: "⏳"},
	StatusProcessing: {Class: "processing", Glyph: "🔄"},
	StatusCompleted:  {Class: "completed", Glyph: "✅"},
	StatusFailed:     {Class: "failed", Glyph: "❌"},
}

// Display returns the display classification for a status. Unrecognized or
// future status values fall back to the PENDING display so that a newer
// backend never breaks rendering.
func (s DocumentStatus) Display() StatusDisplay {
	if d, ok := statusDisplays[s]; ok {
		return d
	}
	return statusDisplays[StatusPending]
}

// Document represents one unit of uploaded content plus the metadata the
// backend derives from it. The backend is the sole source of truth: the id is
// assigned at upload acceptance and is stable across refreshes, and every
// other field is replaced wholesale whenever the collection is refreshed.
//
// DocumentType and ExtractedText are populated only after classification and
// extraction succeed; ProcessedAt is set once a terminal status is reached.
// All three are optional in the wire format and must render defensively.
type Document struct {
	ID            int64          `json:"id"`
	Filename      string         `json:"filename"`
	Status        DocumentStatus `json:"status"`
	DocumentType  string         `json:"documentType,omitempty"`
	ExtractedText string         `json:"extractedText,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	ProcessedAt   *time.Time     `json:"processedAt,omitempty"`
}

// IsTerminal reports whether the document has finished processing.
func (d *Document) IsTerminal() bool {
	return d.Status.IsTerminal()
}

// Display returns the presentation classification for the document's status.
func (d *Document) Display() StatusDisplay {
	return d.Status.Display()
}
