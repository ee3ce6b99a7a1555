package extractor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflow/ingestd/config"
	"github.com/fileflow/ingestd/internal/database"
)

func testFileTypes() config.FileTypeConfig {
	return config.FileTypeConfig{
		CSVExtensions:   []string{".csv", ".tsv"},
		ImageExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"},
		VideoExtensions: []string{".mp4", ".avi", ".mkv", ".mov"},
	}
}

func writePNG(t *testing.T, width, height int) string {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.NRGBA{R: uint8(x), A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "test.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writeJPEG(t *testing.T, width, height int) string {
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	path := filepath.Join(t.TempDir(), "test.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestImageValidate(t *testing.T) {
	ex := NewImageExtractor()

	t.Run("valid png passes", func(t *testing.T) {
		assert.NoError(t, ex.Validate(writePNG(t, 8, 4)))
	})

	t.Run("zero byte file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.jpg")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		assert.Error(t, ex.Validate(path))
	})

	t.Run("non image bytes are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.png")
		require.NoError(t, os.WriteFile(path, []byte("this is text"), 0o644))
		assert.Error(t, ex.Validate(path))
	})
}

func TestImageExtract(t *testing.T) {
	ex := NewImageExtractor()

	t.Run("png dimensions and mode", func(t *testing.T) {
		meta, err := ex.Extract(writePNG(t, 640, 480))
		require.NoError(t, err)

		assert.Equal(t, 640, meta["width"])
		assert.Equal(t, 480, meta["height"])
		assert.Equal(t, "png", meta["format"])
		assert.Equal(t, "RGBA", meta["mode"])
		assert.Equal(t, 4, meta["channels"])
		assert.Equal(t, 0.31, meta["size_mp"])
	})

	t.Run("jpeg reports RGB", func(t *testing.T) {
		meta, err := ex.Extract(writeJPEG(t, 32, 32))
		require.NoError(t, err)

		assert.Equal(t, "jpeg", meta["format"])
		assert.Equal(t, "RGB", meta["mode"])
		assert.Equal(t, 3, meta["channels"])
	})
}

func TestDetectType(t *testing.T) {
	registry := NewRegistry(testFileTypes())

	cases := []struct {
		path     string
		fileType string
		known    bool
	}{
		{"/in/report.csv", "csv", true},
		{"/in/REPORT.CSV", "csv", true},
		{"/in/photo.jpg", "image", true},
		{"/in/photo.PNG", "image", true},
		{"/in/clip.mp4", "video", true},
		{"/in/readme.txt", "", false},
		{"/in/noextension", "", false},
	}

	for _, tc := range cases {
		fileType, known := registry.DetectType(tc.path)
		assert.Equal(t, tc.known, known, tc.path)
		if tc.known {
			assert.Equal(t, tc.fileType, string(fileType), tc.path)
		}
	}
}

func TestForType(t *testing.T) {
	registry := NewRegistry(testFileTypes())

	for _, fileType := range []database.FileType{
		database.FileTypeCSV, database.FileTypeImage, database.FileTypeVideo,
	} {
		ex, ok := registry.ForType(fileType)
		assert.True(t, ok, string(fileType))
		assert.NotNil(t, ex, string(fileType))
	}

	_, ok := registry.ForType(database.FileType("archive"))
	assert.False(t, ok)
}
