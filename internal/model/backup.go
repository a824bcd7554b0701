package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup records one encrypted subscriber export uploaded to object storage.
type Backup struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	S3Key    string `json:"s3_key"`
	// SizeBytes is the size of the sealed object, not of the plain export.
	SizeBytes int64 `json:"size_bytes"`
	// Subscribers is the number of records in the export.
	Subscribers  int          `json:"subscribers"`
	Status       BackupStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Done reports whether the upload has finished, successfully or not.
func (b Backup) Done() bool {
	return b.Status == BackupStatusCompleted || b.Status == BackupStatusFailed
}
