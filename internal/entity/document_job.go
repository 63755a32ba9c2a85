package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentJob is one processing attempt of one source document.
type DocumentJob struct {
	ID           uuid.UUID  `json:"id"`
	RunID        string     `json:"run_id"`
	SourcePath   string     `json:"source_path"`
	ContentHash  string     `json:"content_hash"`
	Mode         string     `json:"mode"`
	Status       string     `json:"status"`
	RecordCount  int        `json:"record_count"`
	Suppressed   int        `json:"suppressed"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// Field is one extracted key/value pair as persisted, in extraction order.
type Field struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// StoredRecord is an extracted record as kept in the run ledger.
type StoredRecord struct {
	JobID           uuid.UUID `json:"job_id"`
	RecordIndex     int       `json:"record_index"`
	SourceID        string    `json:"source_id"`
	ExtractedAt     time.Time `json:"extracted_at"`
	Fields          []Field   `json:"fields"`
	ExtractionError string    `json:"extraction_error,omitempty"`
}
