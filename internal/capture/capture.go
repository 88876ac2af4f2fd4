// Package capture supplies dashboard frames to the scan agent
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoFrame means no frame newer than the last one read is available
	ErrNoFrame = errors.New("no new frame available")
	// ErrUnsupportedImage is returned for payloads that are not a supported image type
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Frame is one captured dashboard image
type Frame struct {
	Name       string
	Data       []byte
	MimeType   string
	CapturedAt time.Time
}

// FrameSource yields frames for the agent to scan
type FrameSource interface {
	// Next returns the next frame, or ErrNoFrame when nothing new has arrived
	Next(ctx context.Context) (*Frame, error)

	// Name returns the name of the frame source
	Name() string
}

var extensionMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// MimeTypeForName maps a file name to its image mime type
func MimeTypeForName(name string) (string, bool) {
	mt, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(name))]
	return mt, ok
}

// NewFrame builds a frame from raw upload bytes, sniffing the content type
func NewFrame(name string, data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("frame %s is empty: %w", name, ErrUnsupportedImage)
	}

	mimeType := http.DetectContentType(data)
	if !isSupportedMimeType(mimeType) {
		if mt, ok := MimeTypeForName(name); ok {
			mimeType = mt
		} else {
			return nil, fmt.Errorf("frame %s has type %s: %w", name, mimeType, ErrUnsupportedImage)
		}
	}

	return &Frame{
		Name:       name,
		Data:       data,
		MimeType:   mimeType,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// DecodeDataURL parses a data:image/...;base64, payload into a frame
func DecodeDataURL(dataURL string) (*Frame, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURL), "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL: %w", ErrUnsupportedImage)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload: %w", ErrUnsupportedImage)
	}

	mimeType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("data URL encoding %q: %w", encoding, ErrUnsupportedImage)
	}
	if !isSupportedMimeType(mimeType) {
		return nil, fmt.Errorf("data URL type %q: %w", mimeType, ErrUnsupportedImage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("data URL is empty: %w", ErrUnsupportedImage)
	}

	return &Frame{
		Name:       "upload",
		Data:       data,
		MimeType:   mimeType,
		CapturedAt: time.Now().UTC(),
	}, nil
}

func isSupportedMimeType(mimeType string) bool {
	for _, mt := range extensionMimeTypes {
		if mt == mimeType {
			return true
		}
	}
	return false
}
