package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/docket/internal/models"
)

// DocumentAPI is the consumed surface of the ingestion backend, reached
// through the gateway at a configurable base path. The backend is the sole
// source of truth for the document collection; this client only reads it and
// appends to it via upload.
type DocumentAPI interface {
	// ListDocuments fetches the entire collection, ordered most-recent-first
	// as returned by the backend.
	ListDocuments(ctx context.Context) ([]models.Document, error)

	// UploadDocument submits one file as a multipart payload and returns the
	// newly created document record.
	UploadDocument(ctx context.Context, filename string, content io.Reader) (*models.Document, error)

	// Health probes the gateway liveness endpoint.
	Health(ctx context.Context) error
}
