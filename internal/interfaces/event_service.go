package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventDocumentUploaded fires after the submitter successfully creates a
	// document. Payload is the new document's id (int64).
	EventDocumentUploaded EventType = "document_uploaded"

	// EventDocumentsChanged fires when an external signal (gateway push)
	// reports that the collection changed out-of-band.
	EventDocumentsChanged EventType = "documents_changed"

	// EventCollectionRefreshed fires after the synchronizer replaces its
	// collection. Payload is the document count (int).
	EventCollectionRefreshed EventType = "collection_refreshed"

	// EventSyncFailed fires when a refresh attempt fails. Payload is the
	// error message (string).
	EventSyncFailed EventType = "sync_failed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the in-process pub/sub bus that carries refresh
// triggers between the submitter, the synchronizer and the presentation layer.
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
