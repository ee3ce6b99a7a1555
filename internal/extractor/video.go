package extractor

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	mp4 "github.com/abema/go-mp4"

	"github.com/fileflow/ingestd/internal/apperrors"
)

// videoExtractor extracts container-level metadata from video files. MP4
// family containers (mp4, mov) are parsed for duration, dimensions and
// codec; the remaining containers are identified by signature only.
type videoExtractor struct{}

// NewVideoExtractor returns the video capability.
func NewVideoExtractor() Extractor {
	return &videoExtractor{}
}

// container signatures, longest prefix first where it matters
var (
	magicEBML = []byte{0x1A, 0x45, 0xDF, 0xA3}       // mkv, webm
	magicRIFF = []byte("RIFF")                        // avi
	magicFLV  = []byte("FLV")                         // flv
	magicASF  = []byte{0x30, 0x26, 0xB2, 0x75}       // wmv
)

func (e *videoExtractor) Validate(path string) error {
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
		return apperrors.New(apperrors.ErrCodeValidation, "video file is empty")
	}

	header := make([]byte, 16)
	if _, err := f.Read(header); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeValidation, "cannot read file header", err)
	}
	if container := sniffContainer(header); container == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "file does not look like a known video container")
	}
	return nil
}

func (e *videoExtractor) Extract(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot open file", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	if _, err := f.Read(header); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot read file header", err)
	}
	container := sniffContainer(header)

	if container == "mp4" {
		return e.extractMP4(f)
	}

	// Non-BMFF containers: the capability reports the container identity;
	// deeper structure would need a demuxer per format.
	return Metadata{
		"container":        container,
		"codec":            "unknown",
		"duration_seconds": 0.0,
	}, nil
}

// extractMP4 probes the ISO BMFF structure for duration, track dimensions
// and codec.
func (e *videoExtractor) extractMP4(f *os.File) (Metadata, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot rewind file", err)
	}

	info, err := mp4.Probe(f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "mp4 probe failed", err)
	}

	durationSeconds := 0.0
	if info.Timescale > 0 {
		durationSeconds = float64(info.Duration) / float64(info.Timescale)
	}

	codec := "unknown"
	width, height := 0, 0
	frameCount := 0
	fps := 0.0
	for _, track := range info.Tracks {
		if track.AVC != nil {
			codec = "h264"
			width = int(track.AVC.Width)
			height = int(track.AVC.Height)
			frameCount = len(track.Samples)
			if track.Timescale > 0 && track.Duration > 0 {
				trackSeconds := float64(track.Duration) / float64(track.Timescale)
				fps = float64(frameCount) / trackSeconds
			}
			break
		}
	}

	return Metadata{
		"container":          "mp4",
		"major_brand":        strings.TrimSpace(string(info.MajorBrand[:])),
		"codec":              codec,
		"width":              width,
		"height":             height,
		"frame_count":        frameCount,
		"fps":                roundTo(fps, 2),
		"duration_seconds":   roundTo(durationSeconds, 2),
		"duration_formatted": formatDuration(durationSeconds),
	}, nil
}

func sniffContainer(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "mp4"
	case bytes.HasPrefix(header, magicEBML):
		return "matroska"
	case bytes.HasPrefix(header, magicRIFF):
		return "avi"
	case bytes.HasPrefix(header, magicFLV):
		return "flv"
	case bytes.HasPrefix(header, magicASF):
		return "asf"
	default:
		return ""
	}
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}

func formatDuration(seconds float64) string {
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
