package database

import "time"

// Process log statuses. One of these is the terminal state of every
// pipeline attempt.
const (
	LogStatusSuccess           = "success"
	LogStatusFailed            = "failed"
	LogStatusDuplicate         = "duplicate_rejected"
	LogStatusValidationFailed  = "validation_failed"
	LogStatusExtractionFailed  = "metadata_extraction_failed"
	LogStatusDBInsertFailed    = "database_insert_failed"
)

// ProcessLog is the append-only audit record: exactly one row per file per
// pipeline attempt, successes included. The pipeline never updates or
// deletes rows here.
type ProcessLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	FileName     string    `gorm:"not null;size:255;index" json:"file_name"`
	FileType     FileType  `gorm:"size:20" json:"file_type"`
	Status       string    `gorm:"not null;size:40;index" json:"status"`
	Message      string    `gorm:"size:1000" json:"message"`
	ErrorDetails *string   `gorm:"size:2000" json:"error_details,omitempty"`
	ContentHash  string    `gorm:"size:64" json:"content_hash,omitempty"` // recorded when known, empty otherwise
	Batch        string    `gorm:"size:20;index" json:"batch"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName names the ProcessLog table.
func (ProcessLog) TableName() string {
	return "process_logs"
}
