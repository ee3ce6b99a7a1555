// Package extractor implements the per-type metadata extraction capability:
// a syntactic validation pass and a structural extraction pass for each
// supported file type. The supported set is small and closed, so extractors
// live in a fixed registry keyed by file type rather than behind any dynamic
// factory.
package extractor

import (
	"path/filepath"
	"strings"

	"github.com/fileflow/ingestd/config"
	"github.com/fileflow/ingestd/internal/database"
)

// Metadata is the opaque type-specific payload stored on a FileRecord.
type Metadata map[string]interface{}

// Extractor validates a file against its claimed type and extracts its
// structural metadata. All failures are returned as errors; extractors must
// not panic on malformed input.
type Extractor interface {
	// Validate performs the cheap syntactic check: the file opens as the
	// claimed format and is not empty.
	Validate(path string) error

	// Extract returns the type-specific metadata payload. It assumes
	// Validate already passed; structural failures (unreadable frames,
	// broken rows) are still reported as errors.
	Extract(path string) (Metadata, error)
}

// Registry holds the fixed extractor set and the configured extension map.
type Registry struct {
	extractors map[database.FileType]Extractor
	extToType  map[string]database.FileType
}

// NewRegistry builds the registry from the configured extension lists.
func NewRegistry(cfg config.FileTypeConfig) *Registry {
	extToType := make(map[string]database.FileType)
	for _, ext := range cfg.CSVExtensions {
		extToType[strings.ToLower(ext)] = database.FileTypeCSV
	}
	for _, ext := range cfg.ImageExtensions {
		extToType[strings.ToLower(ext)] = database.FileTypeImage
	}
	for _, ext := range cfg.VideoExtensions {
		extToType[strings.ToLower(ext)] = database.FileTypeVideo
	}

	return &Registry{
		extractors: map[database.FileType]Extractor{
			database.FileTypeCSV:   NewCSVExtractor(),
			database.FileTypeImage: NewImageExtractor(),
			database.FileTypeVideo: NewVideoExtractor(),
		},
		extToType: extToType,
	}
}

// DetectType maps a path's extension onto a file type. The second return is
// false for unknown extensions; content is never sniffed to compensate.
func (r *Registry) DetectType(path string) (database.FileType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	fileType, ok := r.extToType[ext]
	return fileType, ok
}

// ForType returns the extractor registered for the given type.
func (r *Registry) ForType(fileType database.FileType) (Extractor, bool) {
	ex, ok := r.extractors[fileType]
	return ex, ok
}
