package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docket/internal/common"
	"github.com/ternarybob/docket/internal/interfaces"
	"github.com/ternarybob/docket/internal/models"
)

// MaxUploadBytes is the largest file the gateway accepts (20 MiB).
// Files of exactly this size pass; strictly larger files are rejected.
const MaxUploadBytes = 20 * 1024 * 1024

// allowedTypes is the fixed MIME allow-list for uploads, matched against
// content-sniffed types rather than file extensions.
var allowedTypes = []string{"image/jpeg", "image/png", "application/pdf"}

var (
	// ErrUnsupportedType is returned when the sniffed MIME type is not in the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when the file exceeds MaxUploadBytes.
	ErrFileTooLarge = errors.New("file too large")

	// ErrBusy is returned when a Submit call arrives while another upload is in flight.
	ErrBusy = errors.New("upload already in progress")
)

// Service implements UploadService. At most one upload is in flight per
// instance; concurrent Submit calls fail fast with ErrBusy instead of queueing.
type Service struct {
	client       interfaces.DocumentAPI
	eventService interfaces.EventService
	logger       arbor.ILogger
	confirmDelay time.Duration

	mu     sync.RWMutex
	status models.UploadStatus
}

// NewService creates a new upload service. confirmDelay controls how long the
// success confirmation message stays visible in Status; zero disables the linger.
func NewService(client interfaces.DocumentAPI, eventService interfaces.EventService, confirmDelay time.Duration, logger arbor.ILogger) interfaces.UploadService {
	return &Service{
		client:       client,
		eventService: eventService,
		logger:       logger,
		confirmDelay: confirmDelay,
	}
}

// Submit validates the file at path and uploads it to the gateway.
// Validation failures are reported synchronously and never reach the network.
// Exactly one outcome (the document or an error) is reported per call.
func (s *Service) Submit(ctx context.Context, path string) (*models.Document, error) {
	name := filepath.Base(path)

	// Single-flight guard
	s.mu.Lock()
	if s.status.Busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.status = models.UploadStatus{Busy: true, Message: fmt.Sprintf("Uploading %s...", name)}
	s.mu.Unlock()

	logger := s.logger.WithCorrelationId(common.NewSubmissionID())

	if err := validate(path); err != nil {
		s.setStatus(models.UploadStatus{})
		logger.Warn().
			Str("filename", name).
			Err(err).
			Msg("Upload rejected by local validation")
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		s.setStatus(models.UploadStatus{})
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	logger.Info().
		Str("filename", name).
		Msg("Submitting upload")

	doc, err := s.client.UploadDocument(ctx, name, file)
	if err != nil {
		s.setStatus(models.UploadStatus{})
		logger.Error().
			Str("filename", name).
			Err(err).
			Msg("Upload failed")
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	// Busy clears immediately; the confirmation message lingers for confirmDelay
	confirmation := fmt.Sprintf("Uploaded %s", name)
	s.setStatus(models.UploadStatus{Message: confirmation})
	if s.confirmDelay > 0 {
		common.SafeGo(s.logger, "clearConfirmation", func() {
			time.Sleep(s.confirmDelay)
			s.clearConfirmation(confirmation)
		})
	} else {
		s.setStatus(models.UploadStatus{})
	}

	logger.Info().
		Int64("document_id", doc.ID).
		Str("filename", doc.Filename).
		Str("status", string(doc.Status)).
		Msg("Document uploaded")

	// Announce the new document so the synchronizer refreshes.
	// Background context: the event outlives this call's ctx.
	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventDocumentUploaded,
		Payload: doc.ID,
	})

	return doc, nil
}

// Status returns the current busy flag and progress message (thread-safe)
func (s *Service) Status() models.UploadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) setStatus(status models.UploadStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// clearConfirmation resets the status only if the confirmation message is still
// showing. A submit started during the linger window keeps its own message.
func (s *Service) clearConfirmation(expected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Busy && s.status.Message == expected {
		s.status = models.UploadStatus{}
	}
}

// validate checks the MIME type then the size of the file at path.
// Both checks are local; no network I/O happens here.
func validate(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	allowed := false
	for _, t := range allowedTypes {
		if mtype.Is(t) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s (allowed: JPEG, PNG, PDF)", ErrUnsupportedType, mtype.String())
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxUploadBytes {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxUploadBytes))
	}

	return nil
}
