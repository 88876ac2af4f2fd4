package capture

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for content sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFrame(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestDirectorySourceReturnsNewestFrameOnce(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFrame(t, dir, "frame_001.png", base)
	writeFrame(t, dir, "frame_002.jpg", base.Add(time.Minute))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)

	frame, err := src.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "frame_002.jpg", frame.Name)
	assert.Equal(t, "image/jpeg", frame.MimeType)
	assert.Equal(t, pngHeader, frame.Data)

	_, err = src.Next(t.Context())
	assert.ErrorIs(t, err, ErrNoFrame)

	writeFrame(t, dir, "frame_003.webp", base.Add(2*time.Minute))
	frame, err = src.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "frame_003.webp", frame.Name)
	assert.Equal(t, "image/webp", frame.MimeType)
}

func TestDirectorySourceEmptyDirectory(t *testing.T) {
	src, err := NewDirectorySource(t.TempDir())
	require.NoError(t, err)

	_, err = src.Next(t.Context())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestDirectorySourceRejectsMissingDirectory(t *testing.T) {
	_, err := NewDirectorySource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	frame, err := DecodeDataURL("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/png", frame.MimeType)
	assert.Equal(t, pngHeader, frame.Data)

	tests := []struct {
		name  string
		input string
	}{
		{"not a data url", "https://example.com/x.png"},
		{"no payload", "data:image/png;base64"},
		{"not base64", "data:image/png," + encoded},
		{"not an image", "data:text/plain;base64," + encoded},
		{"empty payload", "data:image/png;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURL(tt.input)
			assert.ErrorIs(t, err, ErrUnsupportedImage)
		})
	}

	_, err = DecodeDataURL("data:image/png;base64,@@@")
	assert.Error(t, err)
}

func TestNewFrameSniffsContentType(t *testing.T) {
	frame, err := NewFrame("screen", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", frame.MimeType)

	frame, err = NewFrame("screen.webp", []byte("RIFF????WEBPVP8 "))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", frame.MimeType)

	_, err = NewFrame("notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = NewFrame("empty.png", nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
