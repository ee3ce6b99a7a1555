// Package database defines the gorm models of the ingestion pipeline and
// the connection bootstrap for the selectable backends.
package database

import (
	"time"

	"gorm.io/gorm"
)

// FileType classifies a file by its extension. Types are derived from the
// configured extension map only, never guessed from content.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// Record status values. The on-disk raw copy is a retained original, not a
// separate lifecycle status.
const (
	StatusValidated = "validated"
	StatusFailed    = "failed"
)

// FileRecord stores the metadata of one ingested (non-duplicate) file.
// content_hash is unique among validated records; that constraint is what
// the deduplication index queries against.
type FileRecord struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	FileID      string         `gorm:"uniqueIndex;not null;size:36" json:"file_id"` // UUID assigned by the gateway on insert
	FileName    string         `gorm:"not null;size:255" json:"file_name"`
	SourcePath  string         `gorm:"not null;size:500" json:"source_path"` // path as discovered in incoming
	FileType    FileType       `gorm:"not null;size:20;index" json:"file_type"`
	FileSize    int64          `gorm:"not null" json:"file_size"`
	ContentHash string         `gorm:"uniqueIndex;not null;size:64" json:"content_hash"` // SHA-256 hex digest
	Status      string         `gorm:"not null;size:20;index" json:"status"`
	Metadata    string         `gorm:"type:text" json:"metadata"` // type-specific payload, JSON-encoded
	IngestedAt  time.Time      `json:"ingested_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName names the FileRecord table.
func (FileRecord) TableName() string {
	return "file_records"
}
