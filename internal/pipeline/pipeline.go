// Package pipeline drives one file through the ingestion state machine:
// detect, validate, extract, hash/deduplicate, persist, organize. Every
// attempt finishes in exactly one terminal state with exactly one process
// log entry and one filesystem relocation; a failing step is converted into
// its terminal outcome at this boundary and never escapes to abort a cycle.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fileflow/ingestd/internal/database"
	"github.com/fileflow/ingestd/internal/dedup"
	"github.com/fileflow/ingestd/internal/extractor"
	"github.com/fileflow/ingestd/internal/gateway"
	"github.com/fileflow/ingestd/internal/logger"
	"github.com/fileflow/ingestd/internal/organizer"
)

// Result is the terminal outcome of one pipeline attempt.
type Result struct {
	FilePath string
	FileName string
	FileType database.FileType
	// Status is one of the database.LogStatus* terminal states.
	Status  string
	Message string
	// FileID is set on success only.
	FileID string
	// Destinations lists where the file ended up (failed path, or raw and
	// validated paths).
	Destinations []string
}

// Succeeded reports whether the attempt reached the success terminal state.
func (r Result) Succeeded() bool {
	return r.Status == database.LogStatusSuccess
}

// Duplicate reports whether the attempt was rejected as a duplicate.
func (r Result) Duplicate() bool {
	return r.Status == database.LogStatusDuplicate
}

// Pipeline owns the transient per-file state while a file is processed.
type Pipeline struct {
	registry *extractor.Registry
	gw       gateway.Gateway
	index    *dedup.Index
	org      *organizer.Organizer
}

// New wires the orchestrator over its collaborators.
func New(registry *extractor.Registry, gw gateway.Gateway, org *organizer.Organizer) *Pipeline {
	return &Pipeline{
		registry: registry,
		gw:       gw,
		index:    dedup.NewIndex(gw),
		org:      org,
	}
}

// ProcessFile runs the full state machine for one file. batch is the
// cycle's directory label. The returned Result always carries a terminal
// status; ProcessFile itself never returns an error because every failure
// is a terminal outcome, not a cycle abort.
func (p *Pipeline) ProcessFile(path string, batch string) Result {
	fileName := filepath.Base(path)
	logger.Infof("[pipeline] starting ingestion: %s", path)

	// Step 1: discover. The type comes from the extension map alone;
	// unknown extensions are rejected before any extractor runs.
	fileType, known := p.registry.DetectType(path)
	if !known {
		return p.reject(path, batch, fileType, database.LogStatusValidationFailed,
			fmt.Sprintf("unknown file extension %q", filepath.Ext(path)), nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return p.reject(path, batch, fileType, database.LogStatusValidationFailed,
			"file disappeared before processing", err)
	}

	ex, ok := p.registry.ForType(fileType)
	if !ok {
		return p.reject(path, batch, fileType, database.LogStatusValidationFailed,
			fmt.Sprintf("no extractor registered for type %s", fileType), nil)
	}

	// Step 2: validate. No hash is computed and nothing is persisted beyond
	// the log entry for an invalid file.
	if err := ex.Validate(path); err != nil {
		return p.reject(path, batch, fileType, database.LogStatusValidationFailed,
			"validation failed", err)
	}

	// Step 3: extract type-specific metadata. Distinguished from validation:
	// the file opens as its claimed format but its structure is unusable.
	metadata, err := ex.Extract(path)
	if err != nil {
		return p.reject(path, batch, fileType, database.LogStatusExtractionFailed,
			"metadata extraction failed", err)
	}

	// Step 4: hash and deduplicate against validated records.
	hash, err := dedup.HashFile(path)
	if err != nil {
		return p.reject(path, batch, fileType, database.LogStatusFailed,
			"failed to compute content hash", err)
	}

	existing, err := p.index.Lookup(hash)
	if err != nil {
		// The gateway is the dedup source of truth; without it the file
		// cannot be safely ingested.
		return p.rejectWithHash(path, batch, fileType, hash, database.LogStatusDBInsertFailed,
			"duplicate lookup failed", err)
	}
	if existing != nil {
		// Never silently deleted: the duplicate is retained in the failed
		// tree for audit.
		return p.rejectWithHash(path, batch, fileType, hash, database.LogStatusDuplicate,
			fmt.Sprintf("duplicate of %s", existing.FileName), nil)
	}

	// Step 5: persist. On failure the file must not reach raw or validated,
	// since no record exists for it; it goes to failed with the gateway
	// error so an operator can re-drop it into incoming.
	payload, err := json.Marshal(metadata)
	if err != nil {
		return p.rejectWithHash(path, batch, fileType, hash, database.LogStatusExtractionFailed,
			"failed to encode metadata payload", err)
	}

	record := &database.FileRecord{
		FileName:    fileName,
		SourcePath:  path,
		FileType:    fileType,
		FileSize:    info.Size(),
		ContentHash: hash,
		Status:      database.StatusValidated,
		Metadata:    string(payload),
	}

	fileID, err := p.gw.InsertMetadata(record)
	if err != nil {
		if errors.Is(err, gateway.ErrDuplicateHash) {
			// Lost a race with a concurrent insert of identical content;
			// same outcome as a lookup hit.
			return p.rejectWithHash(path, batch, fileType, hash, database.LogStatusDuplicate,
				"duplicate of concurrently ingested content", err)
		}
		return p.rejectWithHash(path, batch, fileType, hash, database.LogStatusDBInsertFailed,
			"database insert failed", err)
	}

	// Step 6: organize. The original is kept twice: a batch-stamped copy in
	// validated and the unmodified original in the raw retention tree.
	validatedPath, err := p.org.CopyToValidated(path, batch, fileType)
	if err != nil {
		return p.organizeFailure(path, batch, fileType, hash, fileID,
			"failed to place validated copy", err)
	}

	rawPath, err := p.org.MoveToRaw(path, fileType)
	if err != nil {
		// The validated copy exists but the original could not be retired
		// from incoming; roll the record back to failed so dedup ignores it.
		os.Remove(validatedPath)
		return p.organizeFailure(path, batch, fileType, hash, fileID,
			"failed to move original to raw storage", err)
	}

	p.appendLog(&database.ProcessLog{
		FileName:    fileName,
		FileType:    fileType,
		Status:      database.LogStatusSuccess,
		Message:     "file successfully ingested",
		ContentHash: hash,
		Batch:       batch,
	})

	logger.Infof("[pipeline] successfully ingested %s (id=%s, hash=%s)", fileName, fileID, hash[:12])
	return Result{
		FilePath:     path,
		FileName:     fileName,
		FileType:     fileType,
		Status:       database.LogStatusSuccess,
		Message:      "file successfully ingested",
		FileID:       fileID,
		Destinations: []string{rawPath, validatedPath},
	}
}

// reject finishes an attempt in a failure terminal state: one move to the
// failed tree, one process log entry.
func (p *Pipeline) reject(path, batch string, fileType database.FileType, status, message string, cause error) Result {
	return p.rejectWithHash(path, batch, fileType, "", status, message, cause)
}

func (p *Pipeline) rejectWithHash(path, batch string, fileType database.FileType, hash, status, message string, cause error) Result {
	fileName := filepath.Base(path)

	details := message
	var errDetails *string
	if cause != nil {
		details = fmt.Sprintf("%s: %v", message, cause)
		s := cause.Error()
		errDetails = &s
	}
	logger.Warnf("[pipeline] %s: %s - %s", status, path, details)

	destinations := []string{}
	dest, moveErr := p.org.MoveToFailed(path, batch, fileType)
	if moveErr != nil {
		// Fatal for this file, but never for the cycle: the file stays put
		// and the log entry records that relocation itself failed.
		logger.Errorf("[pipeline] failed to move %s to failed storage: %v", path, moveErr)
		details = fmt.Sprintf("%s; relocation to failed storage also failed: %v", details, moveErr)
		s := details
		errDetails = &s
	} else {
		destinations = append(destinations, dest)
		logger.Infof("[pipeline] moved %s to failed storage: %s", fileName, dest)
	}

	p.appendLog(&database.ProcessLog{
		FileName:     fileName,
		FileType:     fileType,
		Status:       status,
		Message:      message,
		ErrorDetails: errDetails,
		ContentHash:  hash,
		Batch:        batch,
	})

	return Result{
		FilePath:     path,
		FileName:     fileName,
		FileType:     fileType,
		Status:       status,
		Message:      details,
		Destinations: destinations,
	}
}

// organizeFailure handles a relocation failure after the record was already
// persisted: the record is demoted to failed so it no longer participates
// in dedup, and the file goes to the failed tree.
func (p *Pipeline) organizeFailure(path, batch string, fileType database.FileType, hash, fileID, message string, cause error) Result {
	if err := p.gw.UpdateMetadata(fileID, map[string]interface{}{
		"status": database.StatusFailed,
	}); err != nil {
		logger.Errorf("[pipeline] failed to demote record %s after relocation failure: %v", fileID, err)
	}
	return p.rejectWithHash(path, batch, fileType, hash, database.LogStatusFailed, message, cause)
}

// appendLog writes the attempt's single audit entry. A failing log write is
// itself logged but cannot change the attempt's outcome.
func (p *Pipeline) appendLog(entry *database.ProcessLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := p.gw.InsertProcessLog(entry); err != nil {
		logger.Errorf("[pipeline] failed to append process log for %s: %v", entry.FileName, err)
	}
}
