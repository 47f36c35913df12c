package common

import (
	"github.com/google/uuid"
)

// NewSubmissionID generates a unique upload submission ID with the "sub_" prefix
// Format: sub_<uuid>
// Used as the correlation ID for upload log entries.
func NewSubmissionID() string {
	return "sub_" + uuid.New().String()
}
