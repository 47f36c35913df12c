package models

// UploadStatus is the externally visible state of the upload submitter.
// Busy is the single-flight guard; Message is the human-readable progress or
// confirmation label shown while a submission is in flight or just finished.
type UploadStatus struct {
	Busy    bool   `json:"busy"`
	Message string `json:"message,omitempty"`
}
