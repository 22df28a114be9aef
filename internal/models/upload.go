package models

import "time"

// UploadRecord is one audit row per pipeline run. It never carries document
// text or the generated summary.
type UploadRecord struct {
	ID           int64     `json:"id"`
	FileName     string    `json:"file_name"`
	MediaType    string    `json:"media_type"`
	Size         int64     `json:"size"`
	State        string    `json:"state"`
	FailureStage string    `json:"failure_stage,omitempty"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	ClientIP     string    `json:"client_ip,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
