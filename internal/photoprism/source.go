package photoprism

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

const (
	// defaultThumbSize is the smallest PhotoPrism thumbnail larger than the decode request.
	defaultThumbSize = "fit_720"
	// archiveBatchSize bounds how many UIDs go into one archive request.
	archiveBatchSize = 100
)

// Source adapts a PhotoPrism library for duplicate detection. URIs are photo UIDs.
// It implements analysis.ChunkSource, analysis.Decoder and analysis.Deleter.
//
// PhotoPrism lists photos by live offset and archived photos leave the listing,
// so offsets passed to GetChunk are shifted back by the number of already listed
// photos this Source has archived.
type Source struct {
	pp *PhotoPrism
	// Query optionally narrows the library, e.g. "year:2024" or "album:xyz".
	Query string
	// ThumbSize is the thumbnail size decoded instead of the original.
	ThumbSize string
	// DecodeSize is the requested edge length after downsampling.
	DecodeSize int

	mu       sync.Mutex
	hashes   map[string]string   // UID -> primary file hash
	listed   map[string]struct{} // UIDs returned by GetChunk and not archived
	archived int                 // listed UIDs archived since
}

// NewSource wraps an authenticated client.
func NewSource(pp *PhotoPrism, query string) *Source {
	return &Source{
		pp:         pp,
		Query:      query,
		ThumbSize:  defaultThumbSize,
		DecodeSize: analysis.DefaultDecodeSize,
		hashes:     make(map[string]string),
		listed:     make(map[string]struct{}),
	}
}

// GetChunk implements analysis.ChunkSource, ordered newest first.
func (s *Source) GetChunk(ctx context.Context, limit, offset int) ([]analysis.ImageChunkItem, error) {
	s.mu.Lock()
	listOffset := max(offset-s.archived, 0)
	s.mu.Unlock()

	photos, err := s.pp.GetPhotos(ctx, limit, listOffset, s.Query, "newest")
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	items := make([]analysis.ImageChunkItem, 0, len(photos))
	s.mu.Lock()
	for i, p := range photos {
		if p.Hash != "" {
			s.hashes[p.UID] = p.Hash
		}
		s.listed[p.UID] = struct{}{}
		items = append(items, analysis.ImageChunkItem{
			ID:        int64(offset + i + 1),
			URI:       p.UID,
			DateTaken: p.TakenAtMillis(),
		})
	}
	s.mu.Unlock()

	return items, nil
}

// Decode implements analysis.Decoder. The thumbnail is preferred; the original
// file is downloaded when no thumbnail is available.
func (s *Source) Decode(ctx context.Context, uid string) (image.Image, error) {
	s.mu.Lock()
	hash := s.hashes[uid]
	s.mu.Unlock()

	var data []byte
	var err error
	if hash != "" {
		data, _, err = s.pp.GetPhotoThumbnail(ctx, hash, s.ThumbSize)
		if err != nil && ctx.Err() == nil {
			log.Printf("Warning: thumbnail for %s unavailable, downloading original: %v", uid, err)
		}
	}
	if hash == "" || err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		data, _, err = s.pp.GetPhotoDownload(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", uid, err)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", uid, err)
	}
	return analysis.Downsample(img, s.DecodeSize), nil
}

// Delete implements analysis.Deleter by archiving the photos. Archived photos
// stay recoverable in the PhotoPrism archive. When a later archive request fails
// the error is an *analysis.PartialDeleteError listing the UIDs already archived.
func (s *Source) Delete(ctx context.Context, uids []string) error {
	for start := 0; start < len(uids); start += archiveBatchSize {
		end := min(start+archiveBatchSize, len(uids))
		if err := s.pp.ArchivePhotos(ctx, uids[start:end]); err != nil {
			err = fmt.Errorf("failed to archive photos %d-%d: %w", start, end, err)
			if start == 0 {
				return err
			}
			return &analysis.PartialDeleteError{Deleted: uids[:start], Err: err}
		}
		s.forget(uids[start:end])
	}
	return nil
}

func (s *Source) forget(uids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range uids {
		delete(s.hashes, uid)
		if _, ok := s.listed[uid]; ok {
			delete(s.listed, uid)
			s.archived++
		}
	}
}
