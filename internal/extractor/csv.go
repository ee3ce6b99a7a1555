package extractor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fileflow/ingestd/internal/apperrors"
)

// csvExtractor extracts row/column structure from delimited text files.
type csvExtractor struct{}

// NewCSVExtractor returns the CSV capability.
func NewCSVExtractor() Extractor {
	return &csvExtractor{}
}

func (e *csvExtractor) Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeValidation, "cannot open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeValidation, "cannot stat file", err)
	}
	if info.Size() == 0 {
		return apperrors.New(apperrors.ErrCodeValidation, "csv file is empty")
	}

	reader := csv.NewReader(f)
	reader.Comma = sniffDelimiter(path)
	reader.FieldsPerRecord = -1

	// Parse up to the first hundred rows; a parse error here means the file
	// is not usable CSV at all.
	rows := 0
	for rows < 100 {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeValidation, "csv parse error", err)
		}
		rows++
	}
	if rows == 0 {
		return apperrors.New(apperrors.ErrCodeValidation, "csv file has no rows")
	}
	return nil
}

func (e *csvExtractor) Extract(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot open file", err)
	}
	defer f.Close()

	delimiter := sniffDelimiter(path)
	reader := csv.NewReader(f)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot read csv header", err)
	}

	columns := make([]string, len(header))
	copy(columns, header)

	stats := make([]*columnStats, len(columns))
	for i := range stats {
		stats[i] = newColumnStats()
	}

	rowCount := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeExtraction,
				fmt.Sprintf("csv structure error at data row %d", rowCount+1), err)
		}
		rowCount++
		for i := range stats {
			if i < len(record) {
				stats[i].observe(record[i])
			} else {
				stats[i].observe("")
			}
		}
	}

	schema := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		schema[col] = map[string]interface{}{
			"type":         stats[i].inferredType(),
			"nullable":     stats[i].nullable,
			"unique_count": stats[i].uniqueCount(),
		}
	}

	return Metadata{
		"row_count":    rowCount,
		"column_count": len(columns),
		"columns":      columns,
		"schema":       schema,
		"delimiter":    string(delimiter),
	}, nil
}

// sniffDelimiter picks the delimiter from the first line of the file,
// falling back to comma. Only comma, semicolon and tab are considered.
func sniffDelimiter(path string) rune {
	f, err := os.Open(path)
	if err != nil {
		return ','
	}
	defer f.Close()

	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	line := string(buf[:n])
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	best, bestCount := ',', strings.Count(line, ",")
	if c := strings.Count(line, ";"); c > bestCount {
		best, bestCount = ';', c
	}
	if c := strings.Count(line, "\t"); c > bestCount {
		best = '\t'
	}
	return rune(best)
}

// columnStats accumulates the per-column schema guess while streaming rows.
type columnStats struct {
	nullable   bool
	seenInt    bool
	seenFloat  bool
	seenBool   bool
	seenString bool
	distinct   map[string]struct{}
	overflowed bool
}

// distinctCap bounds memory on high-cardinality columns; beyond it the
// unique count is reported as the cap.
const distinctCap = 10000

func newColumnStats() *columnStats {
	return &columnStats{distinct: make(map[string]struct{})}
}

func (c *columnStats) observe(value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		c.nullable = true
		return
	}

	if !c.overflowed {
		c.distinct[trimmed] = struct{}{}
		if len(c.distinct) > distinctCap {
			c.overflowed = true
		}
	}

	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		c.seenInt = true
		return
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		c.seenFloat = true
		return
	}
	if _, err := strconv.ParseBool(trimmed); err == nil {
		c.seenBool = true
		return
	}
	c.seenString = true
}

func (c *columnStats) inferredType() string {
	switch {
	case c.seenString:
		return "string"
	case c.seenBool && !c.seenInt && !c.seenFloat:
		return "bool"
	case c.seenFloat:
		return "float"
	case c.seenInt:
		return "int"
	default:
		return "string"
	}
}

func (c *columnStats) uniqueCount() int {
	return len(c.distinct)
}
