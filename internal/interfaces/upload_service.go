package interfaces

import (
	"context"

	"github.com/ternarybob/docket/internal/models"
)

// UploadService validates and submits one file at a time to the ingestion
// backend. A submission reports exactly one outcome: the created document or
// an error. Validation failures never reach the network.
type UploadService interface {
	// Submit validates the file at path and uploads it. A second Submit
	// while one is in flight fails fast with ErrBusy.
	Submit(ctx context.Context, path string) (*models.Document, error)

	// Status returns the busy flag and the current progress or confirmation
	// message for display.
	Status() models.UploadStatus
}
