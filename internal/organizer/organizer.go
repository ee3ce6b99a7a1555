// Package organizer owns final file-path decisions: it computes the
// status-based, batch-stamped destination for every pipeline outcome and
// performs the relocation itself. Moves prefer rename and fall back to
// copy-verify-remove, so a file can never end up existing in neither source
// nor destination.
package organizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fileflow/ingestd/config"
	"github.com/fileflow/ingestd/internal/apperrors"
	"github.com/fileflow/ingestd/internal/database"
)

// batchLayout is the minute-granularity batch label, e.g. 20240115_1230.
const batchLayout = "20060102_1504"

// BatchLabel returns the directory label for a cycle starting at t. The
// label is computed once per cycle and threaded through it, so files of one
// cycle never straddle two batches.
func BatchLabel(t time.Time) string {
	return t.Format(batchLayout)
}

// TypeDir maps a file type onto its destination subdirectory.
func TypeDir(fileType database.FileType) string {
	switch fileType {
	case database.FileTypeCSV:
		return "structured"
	case database.FileTypeImage:
		return "images"
	case database.FileTypeVideo:
		return "videos"
	default:
		return "unknown"
	}
}

// Organizer computes destinations under the configured roots and relocates
// files into them.
type Organizer struct {
	folders config.FolderConfig

	// mu serializes destination reservation so two workers cannot claim the
	// same collision-suffixed name. Only name selection is under the lock,
	// not the copy itself.
	mu sync.Mutex
}

// New builds an Organizer over the configured folder roots.
func New(folders config.FolderConfig) *Organizer {
	return &Organizer{folders: folders}
}

// RawDir is the type-partitioned retention tree for unmodified originals.
func (o *Organizer) RawDir(fileType database.FileType) string {
	return filepath.Join(o.folders.Raw, TypeDir(fileType))
}

// ValidatedDir is the batch-stamped destination for successful files.
func (o *Organizer) ValidatedDir(batch string, fileType database.FileType) string {
	return filepath.Join(o.folders.Validated, batch, TypeDir(fileType))
}

// FailedDir is the batch-stamped destination for failed files.
func (o *Organizer) FailedDir(batch string, fileType database.FileType) string {
	return filepath.Join(o.folders.Failed, batch, TypeDir(fileType))
}

// MoveToFailed relocates a file into the failed tree, returning the final
// destination path.
func (o *Organizer) MoveToFailed(src, batch string, fileType database.FileType) (string, error) {
	return o.Move(src, o.FailedDir(batch, fileType))
}

// CopyToValidated copies a file into the batch's validated tree.
func (o *Organizer) CopyToValidated(src, batch string, fileType database.FileType) (string, error) {
	return o.Copy(src, o.ValidatedDir(batch, fileType))
}

// MoveToRaw relocates a file into the raw retention tree.
func (o *Organizer) MoveToRaw(src string, fileType database.FileType) (string, error) {
	return o.Move(src, o.RawDir(fileType))
}

// Move relocates src into destDir, creating the directory on demand and
// resolving name collisions with a deterministic counter suffix.
func (o *Organizer) Move(src, destDir string) (string, error) {
	dest, err := o.reserveDestination(src, destDir)
	if err != nil {
		return "", err
	}
	if err := moveFile(src, dest); err != nil {
		os.Remove(dest)
		return "", apperrors.Wrap(apperrors.ErrCodeRelocation,
			fmt.Sprintf("failed to move %s to %s", src, dest), err)
	}
	return dest, nil
}

// Copy duplicates src into destDir with the same directory-creation and
// collision rules as Move. The source is left in place.
func (o *Organizer) Copy(src, destDir string) (string, error) {
	dest, err := o.reserveDestination(src, destDir)
	if err != nil {
		return "", err
	}
	if err := copyFile(src, dest); err != nil {
		os.Remove(dest)
		return "", apperrors.Wrap(apperrors.ErrCodeRelocation,
			fmt.Sprintf("failed to copy %s to %s", src, dest), err)
	}
	return dest, nil
}

// reserveDestination creates destDir and picks a collision-free name for
// src's basename inside it. sales.csv collides to sales_1.csv, sales_2.csv
// and so on; existing files are never overwritten.
func (o *Organizer) reserveDestination(src, destDir string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeRelocation,
			fmt.Sprintf("failed to create directory %s", destDir), err)
	}

	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	candidate := filepath.Join(destDir, base)
	for n := 1; ; n++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			break
		}
		candidate = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}

	// Claim the name immediately so a concurrent reservation for the same
	// basename picks the next suffix.
	f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeRelocation,
			fmt.Sprintf("failed to reserve destination %s", candidate), err)
	}
	f.Close()
	return candidate, nil
}

// moveFile renames src over the reserved dest, falling back to
// copy+verify+remove across filesystem boundaries.
func moveFile(src, dest string) error {
	// The reservation placeholder is replaced by the rename.
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dest, syncs, and verifies the byte count before
// reporting success.
func copyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dest, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return err
	}

	written, err := io.Copy(destFile, srcFile)
	if err != nil {
		destFile.Close()
		os.Remove(dest)
		return err
	}
	if err := destFile.Sync(); err != nil {
		destFile.Close()
		os.Remove(dest)
		return err
	}
	if err := destFile.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	if written != srcInfo.Size() {
		os.Remove(dest)
		return fmt.Errorf("short copy: wrote %d of %d bytes", written, srcInfo.Size())
	}
	return nil
}
