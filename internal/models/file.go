package models

import "time"

// FileStatus tracks an uploaded file through the ingestion pipeline.
type FileStatus string

const (
	StatusUploading  FileStatus = "uploading"
	StatusProcessing FileStatus = "processing"
	StatusCompleted  FileStatus = "completed"
	StatusError      FileStatus = "error"
)

// UploadedFile represents metadata about an uploaded tabular file.
// The schema becomes queryable only once Status reaches "completed".
type UploadedFile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	Status      FileStatus `json:"status"`
	RowCount    int64      `json:"rowCount"`
	ColumnCount int        `json:"columnCount"`
	Error       string     `json:"error,omitempty"`
	UploadedAt  time.Time  `json:"uploadedAt"`
}
