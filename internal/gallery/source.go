// Package gallery serves photos from a local directory tree: a newest-first
// chunked listing, a downsampling decoder and a trash-folder deleter.
package gallery

import (
	"cmp"
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

// photoExts lists the file extensions the decoder can read.
var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsPhotoFile reports whether path has a supported photo extension.
func IsPhotoFile(path string) bool {
	return photoExts[strings.ToLower(filepath.Ext(path))]
}

// Source lists the photos below a directory, newest first.
// The directory is walked once, on the first GetChunk call, so offsets stay
// stable for the lifetime of a Source.
type Source struct {
	root    string
	skipDir string

	mu    sync.Mutex
	items []analysis.ImageChunkItem
	ready bool
}

// NewSource creates a source for root. Photos inside skipDir (usually the
// trash directory) are ignored.
func NewSource(root, skipDir string) *Source {
	s := &Source{root: filepath.Clean(root)}
	if skipDir != "" {
		s.skipDir = filepath.Clean(skipDir)
	}
	return s
}

// GetChunk implements analysis.ChunkSource.
func (s *Source) GetChunk(ctx context.Context, limit, offset int) ([]analysis.ImageChunkItem, error) {
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("invalid chunk limit=%d offset=%d", limit, offset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		items, err := s.scan(ctx)
		if err != nil {
			return nil, err
		}
		s.items = items
		s.ready = true
	}

	if offset >= len(s.items) {
		return []analysis.ImageChunkItem{}, nil
	}
	end := min(offset+limit, len(s.items))
	return slices.Clone(s.items[offset:end]), nil
}

// Count returns the number of photos found, walking the directory if needed.
func (s *Source) Count(ctx context.Context) (int, error) {
	if _, err := s.GetChunk(ctx, 1, 0); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *Source) scan(ctx context.Context) ([]analysis.ImageChunkItem, error) {
	var items []analysis.ImageChunkItem

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			return nil // Skip unreadable entries, continue walking
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() {
			if path != s.root && (strings.HasPrefix(name, ".") || path == s.skipDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !IsPhotoFile(path) {
			return nil
		}

		items = append(items, analysis.ImageChunkItem{
			ID:        pathID(path),
			URI:       path,
			DateTaken: captureTime(path, d).UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	slices.SortStableFunc(items, func(a, b analysis.ImageChunkItem) int {
		if c := cmp.Compare(b.DateTaken, a.DateTaken); c != 0 {
			return c
		}
		return cmp.Compare(a.URI, b.URI)
	})
	return items, nil
}

// captureTime determines the best available date for a photo.
// Priority: EXIF DateTimeOriginal, file modification time, current time.
func captureTime(path string, d fs.DirEntry) time.Time {
	if t, err := exifDate(path); err == nil && !t.IsZero() {
		return t
	}
	if info, err := d.Info(); err == nil {
		return info.ModTime()
	}
	return time.Now()
}

func exifDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	return x.DateTime()
}

// pathID derives a stable positive identifier from a path.
func pathID(path string) int64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return int64(h.Sum64() >> 1)
}
