package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/docket/internal/models"
)

// SyncService owns the client's view of the document collection and keeps it
// consistent with the backend. Three triggers funnel into the same refresh:
// activation, a document_uploaded/documents_changed bus event, and a fixed
// poll interval. Every refresh replaces the collection wholesale.
type SyncService interface {
	// Start activates the synchronizer: one immediate refresh, the bus
	// subscriptions, and the recurring poll. Returns an error if already
	// started; a failing initial fetch is recorded in Err, not returned.
	Start(ctx context.Context) error

	// Stop cancels the poll loop and discards any late in-flight responses.
	// Safe to call more than once.
	Stop()

	// Refresh performs one fetch-and-replace cycle. Manual retry after a
	// failure is just another Refresh call.
	Refresh(ctx context.Context) error

	// Documents returns a copy of the current collection in backend order.
	Documents() []models.Document

	// Document looks up one document by id in the held collection. No
	// network call is made; detail is whatever the last refresh produced.
	Document(id int64) (models.Document, bool)

	// Err returns the error from the most recent failed refresh, or nil
	// after a successful one.
	Err() error

	// IsLoading reports whether at least one refresh is in flight.
	IsLoading() bool

	// LastSync returns the completion time of the last successful refresh.
	LastSync() time.Time
}
