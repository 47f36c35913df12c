// Package notify maintains an optional WebSocket connection to the gateway's
// change feed and republishes received notifications on the local event bus.
// The synchronizer's poll loop runs regardless; the listener only shortens the
// latency between a server-side change and the next refresh.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docket/internal/interfaces"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// ChangeMessage is the shape of a gateway change notification
type ChangeMessage struct {
	Event      string `json:"event"`
	DocumentID int64  `json:"documentId,omitempty"`
}

// Service listens to the gateway change feed
type Service struct {
	url          string
	eventService interfaces.EventService
	logger       arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewService creates a new change feed listener
func NewService(url string, eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		url:          url,
		eventService: eventService,
		logger:       logger,
	}
}

// Start launches the listener loop. The loop reconnects with capped backoff
// and never escalates connection failures; a dead feed degrades to poll-only.
func (s *Service) Start(ctx context.Context) error {
	if s.url == "" {
		return fmt.Errorf("change feed url not configured")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("change feed listener already started")
	}
	s.started = true
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.listen()

	s.logger.Info().Str("url", s.url).Msg("Change feed listener started")
	return nil
}

// Stop terminates the listener and waits for the loop to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.logger.Info().Msg("Change feed listener stopped")
}

func (s *Service) listen() {
	defer s.wg.Done()

	backoff := initialBackoff
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn().
				Err(err).
				Str("url", s.url).
				Str("retry_in", backoff.String()).
				Msg("Change feed connection failed")

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		s.logger.Info().Str("url", s.url).Msg("Connected to change feed")
		backoff = initialBackoff

		s.readMessages(conn)
	}
}

// readMessages consumes one connection until it fails or the service stops.
// Every received notification becomes one documents_changed event.
func (s *Service) readMessages(conn *websocket.Conn) {
	defer conn.Close()

	// Unblock the pending read when the service stops
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg ChangeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Change feed read failed, reconnecting")
			}
			return
		}

		s.logger.Debug().
			Str("event", msg.Event).
			Int64("document_id", msg.DocumentID).
			Msg("Change notification received")

		s.eventService.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventDocumentsChanged,
			Payload: msg.Event,
		})
	}
}
