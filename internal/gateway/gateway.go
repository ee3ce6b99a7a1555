// Package gateway is the storage boundary of the pipeline: every database
// read and write of file records and process logs goes through the Gateway
// interface. The concrete implementation rides on gorm, so the backend is
// whatever dialector internal/database opened.
package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fileflow/ingestd/internal/apperrors"
	"github.com/fileflow/ingestd/internal/database"
)

// ErrDuplicateHash reports that an insert violated the unique content-hash
// constraint among validated records. The orchestrator treats it as a
// race-lost duplicate, distinct from other persistence failures.
var ErrDuplicateHash = errors.New("content hash already exists")

// ErrNotFound reports that no record matched the query.
var ErrNotFound = errors.New("record not found")

// Gateway persists file records and process log entries.
type Gateway interface {
	// InsertMetadata persists a new FileRecord and returns its generated
	// file ID. A unique-hash violation returns ErrDuplicateHash.
	InsertMetadata(record *database.FileRecord) (string, error)

	// FindByHash returns the validated record with the given content hash,
	// or ErrNotFound. Failed records never participate.
	FindByHash(hash string) (*database.FileRecord, error)

	// UpdateMetadata applies the given field updates to a record by file ID.
	UpdateMetadata(fileID string, fields map[string]interface{}) error

	// GetMetadata returns a record by file ID, or ErrNotFound.
	GetMetadata(fileID string) (*database.FileRecord, error)

	// InsertProcessLog appends one audit entry. Entries are never updated
	// or deleted.
	InsertProcessLog(entry *database.ProcessLog) error

	// ListFiles pages through file records, newest first. An empty
	// fileType or status matches everything.
	ListFiles(page, pageSize int, fileType, status string) ([]database.FileRecord, int64, error)

	// ListProcessLogs pages through audit entries, newest first. Empty
	// filter values match everything.
	ListProcessLogs(page, pageSize int, status, batch string) ([]database.ProcessLog, int64, error)

	// Stats aggregates process log outcomes by status.
	Stats() (map[string]int64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck() error
}

type gormGateway struct {
	db *gorm.DB
}

// New wraps a gorm handle in a Gateway.
func New(db *gorm.DB) Gateway {
	return &gormGateway{db: db}
}

func (g *gormGateway) InsertMetadata(record *database.FileRecord) (string, error) {
	if record.FileID == "" {
		record.FileID = uuid.New().String()
	}
	if record.IngestedAt.IsZero() {
		record.IngestedAt = time.Now().UTC()
	}

	if err := g.db.Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			// Only validated records block ingestion. A failed or
			// soft-deleted holder of the same hash is replaced so identical
			// content can be ingested again.
			if g.evictNonValidatedHolder(record.ContentHash) {
				if retryErr := g.db.Create(record).Error; retryErr == nil {
					return record.FileID, nil
				}
			}
			return "", fmt.Errorf("%w: %s", ErrDuplicateHash, record.ContentHash)
		}
		return "", apperrors.Wrap(apperrors.ErrCodePersistence, "failed to insert file record", err)
	}
	return record.FileID, nil
}

// evictNonValidatedHolder removes the record currently holding hash when
// that record is not validated. Returns true when an insert retry makes
// sense.
func (g *gormGateway) evictNonValidatedHolder(hash string) bool {
	var holder database.FileRecord
	err := g.db.Unscoped().Where("content_hash = ?", hash).First(&holder).Error
	if err != nil || holder.Status == database.StatusValidated {
		return false
	}
	return g.db.Unscoped().Delete(&holder).Error == nil
}

func (g *gormGateway) FindByHash(hash string) (*database.FileRecord, error) {
	var record database.FileRecord
	err := g.db.Where("content_hash = ? AND status = ?", hash, database.StatusValidated).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to query by hash", err)
	}
	return &record, nil
}

func (g *gormGateway) UpdateMetadata(fileID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	result := g.db.Model(&database.FileRecord{}).Where("file_id = ?", fileID).Updates(fields)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, "failed to update file record", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *gormGateway) GetMetadata(fileID string) (*database.FileRecord, error) {
	var record database.FileRecord
	if err := g.db.Where("file_id = ?", fileID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to get file record", err)
	}
	return &record, nil
}

func (g *gormGateway) InsertProcessLog(entry *database.ProcessLog) error {
	if err := g.db.Create(entry).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, "failed to insert process log", err)
	}
	return nil
}

func (g *gormGateway) ListFiles(page, pageSize int, fileType, status string) ([]database.FileRecord, int64, error) {
	query := g.db.Model(&database.FileRecord{})
	if fileType != "" {
		query = query.Where("file_type = ?", fileType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to count file records", err)
	}

	var records []database.FileRecord
	err := query.Order("ingested_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to list file records", err)
	}
	return records, total, nil
}

func (g *gormGateway) ListProcessLogs(page, pageSize int, status, batch string) ([]database.ProcessLog, int64, error) {
	query := g.db.Model(&database.ProcessLog{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if batch != "" {
		query = query.Where("batch = ?", batch)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to count process logs", err)
	}

	var entries []database.ProcessLog
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to list process logs", err)
	}
	return entries, total, nil
}

func (g *gormGateway) Stats() (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := g.db.Model(&database.ProcessLog{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, "failed to aggregate process logs", err)
	}

	stats := make(map[string]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}

func (g *gormGateway) HealthCheck() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, "failed to get underlying sql.DB", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, "database ping failed", err)
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures across backends.
// gorm translates most of them to ErrDuplicatedKey; the string check covers
// sqlite drivers that predate error translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
