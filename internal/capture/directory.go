package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DirectorySource reads the most recently modified image in a directory.
// A screen recorder or screenshot tool drops frames there; each frame is
// returned at most once.
type DirectorySource struct {
	dir string

	mu       sync.Mutex
	lastPath string
	lastMod  time.Time
}

// NewDirectorySource creates a source watching dir
func NewDirectorySource(dir string) (*DirectorySource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frame directory %s is not a directory", dir)
	}
	return &DirectorySource{dir: dir}, nil
}

// Name returns the name of the frame source
func (s *DirectorySource) Name() string {
	return "directory:" + s.dir
}

// Next returns the newest image, or ErrNoFrame when it was already read
func (s *DirectorySource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frame directory: %w", err)
	}

	var (
		newestPath string
		newestMod  time.Time
		newestMime string
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mimeType, ok := MimeTypeForName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestPath = filepath.Join(s.dir, entry.Name())
			newestMod = info.ModTime()
			newestMime = mimeType
		}
	}

	if newestPath == "" {
		return nil, ErrNoFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if newestPath == s.lastPath && !newestMod.After(s.lastMod) {
		return nil, ErrNoFrame
	}
	if !s.lastMod.IsZero() && newestMod.Before(s.lastMod) {
		return nil, ErrNoFrame
	}

	data, err := os.ReadFile(newestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	s.lastPath = newestPath
	s.lastMod = newestMod

	return &Frame{
		Name:       filepath.Base(newestPath),
		Data:       data,
		MimeType:   newestMime,
		CapturedAt: newestMod.UTC(),
	}, nil
}
