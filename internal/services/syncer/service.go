package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docket/internal/interfaces"
	"github.com/ternarybob/docket/internal/models"
)

// Service implements SyncService. It owns the client's view of the document
// collection and replaces it wholesale on every successful refresh; the backend
// is the sole source of truth and response order (most-recent-first) is kept.
//
// Three triggers funnel into the same Refresh call: the activation refresh in
// Start, bus events announcing a change, and a recurring poll ticker. The
// ticker is how background processing transitions (PENDING -> PROCESSING ->
// COMPLETED/FAILED) become visible without user action.
type Service struct {
	client       interfaces.DocumentAPI
	eventService interfaces.EventService
	logger       arbor.ILogger
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	documents []models.Document
	lastErr   error
	lastSync  time.Time
	inFlight  int
	started   bool
	closed    bool
}

// NewService creates a new document synchronizer
func NewService(client interfaces.DocumentAPI, eventService interfaces.EventService, pollInterval time.Duration, logger arbor.ILogger) interfaces.SyncService {
	return &Service{
		client:       client,
		eventService: eventService,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Start performs the activation refresh, subscribes to change events, and
// launches the poll loop. A failed activation refresh is recorded in Err
// rather than escalated; the loop runs regardless.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer already started")
	}
	s.started = true
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	// One refresh per delivered change signal, regardless of payload
	refresh := func(ctx context.Context, event interfaces.Event) error {
		return s.Refresh(s.ctx)
	}
	if err := s.eventService.Subscribe(interfaces.EventDocumentUploaded, refresh); err != nil {
		return fmt.Errorf("failed to subscribe to upload events: %w", err)
	}
	if err := s.eventService.Subscribe(interfaces.EventDocumentsChanged, refresh); err != nil {
		return fmt.Errorf("failed to subscribe to change events: %w", err)
	}

	// Activation refresh
	if err := s.Refresh(s.ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Initial refresh failed")
	}

	s.wg.Add(1)
	go s.pollLoop()

	s.logger.Info().
		Str("poll_interval", s.pollInterval.String()).
		Msg("Document synchronizer started")

	return nil
}

// pollLoop drives scheduled refreshes until the service context is cancelled.
// Refresh failures never stop the loop.
func (s *Service) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug().Msg("Sync poll loop stopped")
			return
		case <-ticker.C:
			if err := s.Refresh(s.ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Scheduled refresh failed")
			}
		}
	}
}

// Refresh fetches the entire collection and replaces the held view with the
// response. On failure the previous collection is retained and the error is
// recorded until a later refresh succeeds. A refresh completing after Stop is
// discarded without mutating state.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.inFlight++
	s.mu.Unlock()

	docs, err := s.client.ListDocuments(ctx)

	s.mu.Lock()
	s.inFlight--
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug().Msg("Discarding refresh response received after stop")
		return nil
	}
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Warn().Err(err).Msg("Document refresh failed")
		s.eventService.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventSyncFailed,
			Payload: err.Error(),
		})
		return err
	}
	s.documents = docs
	s.lastErr = nil
	s.lastSync = time.Now()
	s.mu.Unlock()

	s.logger.Debug().
		Int("count", len(docs)).
		Msg("Document collection refreshed")
	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventCollectionRefreshed,
		Payload: len(docs),
	})
	return nil
}

// Stop cancels the poll loop and marks the synchronizer closed. In-flight
// requests are not forcibly interrupted; their responses are discarded.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.logger.Info().Msg("Document synchronizer stopped")
}

// Documents returns a copy of the current collection in backend order
func (s *Service) Documents() []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]models.Document, len(s.documents))
	copy(docs, s.documents)
	return docs
}

// Document looks up a single document by id in the held collection.
// No network call is made; the result is whatever the last refresh produced.
func (s *Service) Document(id int64) (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return models.Document{}, false
}

// Err returns the error recorded by the most recent failed refresh, or nil
// after a successful one
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsLoading reports whether at least one refresh is in flight
func (s *Service) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// LastSync returns the completion time of the last successful refresh
func (s *Service) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}
