package extractor

import (
	"image"
	"image/color"
	"math"
	"os"

	// Register the decoders for every configured image extension.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fileflow/ingestd/internal/apperrors"
)

// imageExtractor reads dimensions, channels and format from image headers.
type imageExtractor struct{}

// NewImageExtractor returns the image capability.
func NewImageExtractor() Extractor {
	return &imageExtractor{}
}

func (e *imageExtractor) Validate(path string) error {
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
		return apperrors.New(apperrors.ErrCodeValidation, "image file is empty")
	}

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeValidation, "file does not decode as an image", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return apperrors.New(apperrors.ErrCodeValidation, "image has zero dimensions")
	}
	return nil
}

func (e *imageExtractor) Extract(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot open file", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExtraction, "cannot decode image header", err)
	}

	mode, channels := colorMode(cfg)
	megapixels := math.Round(float64(cfg.Width)*float64(cfg.Height)/1_000_000*100) / 100

	return Metadata{
		"width":    cfg.Width,
		"height":   cfg.Height,
		"channels": channels,
		"format":   format,
		"mode":     mode,
		"size_mp":  megapixels,
	}, nil
}

// colorMode names the color model and its channel count, mirroring the
// categories the rest of the system reports on.
func colorMode(cfg image.Config) (string, int) {
	switch cfg.ColorModel {
	case nil:
		return "unknown", 0
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "RGBA", 4
	case color.GrayModel, color.Gray16Model:
		return "L", 1
	case color.YCbCrModel:
		// JPEG decodes to YCbCr; report it as RGB like everything downstream
		// expects.
		return "RGB", 3
	case color.CMYKModel:
		return "CMYK", 4
	}
	if _, ok := cfg.ColorModel.(color.Palette); ok {
		return "P", 1
	}
	return "RGB", 3
}
