package photoprism

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// GetPhotos retrieves photos with an optional search query and ordering.
// Query examples: "label:cat", "year:2024". Order examples: "newest", "oldest", "added".
func (pp *PhotoPrism) GetPhotos(ctx context.Context, count, offset int, query, order string) ([]Photo, error) {
	endpoint := fmt.Sprintf("photos?count=%d&offset=%d", count, offset)
	if query != "" {
		endpoint += "&q=" + url.QueryEscape(query)
	}
	if order != "" {
		endpoint += "&order=" + url.QueryEscape(order)
	}

	result, err := doGetJSON[[]Photo](ctx, pp, endpoint)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// GetPhotoDetails retrieves full photo details including all metadata
func (pp *PhotoPrism) GetPhotoDetails(ctx context.Context, photoUID string) (map[string]any, error) {
	result, err := doGetJSON[map[string]any](ctx, pp, "photos/"+url.PathEscape(photoUID))
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// findPrimaryFile finds the primary file map from the Files array in photo details.
func findPrimaryFile(files []any) map[string]any {
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if mapBool(file, "Primary") {
			return file
		}
	}
	if first, ok := files[0].(map[string]any); ok {
		return first
	}
	return nil
}

// findPrimaryFileHash extracts the hash of the primary file from photo details.
func findPrimaryFileHash(details map[string]any) string {
	files, ok := details["Files"].([]any)
	if !ok || len(files) == 0 {
		return ""
	}
	primaryFile := findPrimaryFile(files)
	if primaryFile == nil {
		return ""
	}
	return mapString(primaryFile, "Hash")
}

func mapBool(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func mapString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// GetPhotoDownload downloads the primary file of a photo.
func (pp *PhotoPrism) GetPhotoDownload(ctx context.Context, photoUID string) ([]byte, string, error) {
	details, err := pp.GetPhotoDetails(ctx, photoUID)
	if err != nil {
		return nil, "", fmt.Errorf("could not get photo details: %w", err)
	}

	fileHash := findPrimaryFileHash(details)
	if fileHash == "" {
		return nil, "", errors.New("could not find file hash for photo")
	}
	return pp.GetFileDownload(ctx, fileHash)
}

// GetPhotoThumbnail downloads a thumbnail for a photo.
// size can be one of: tile_224, tile_500, fit_720, tile_1080, fit_1280, fit_1920, ...
func (pp *PhotoPrism) GetPhotoThumbnail(ctx context.Context, thumbHash, size string) ([]byte, string, error) {
	u := fmt.Sprintf("%s/t/%s/%s/%s", pp.Url, url.PathEscape(thumbHash), url.PathEscape(pp.downloadToken), size)
	return doDownload(ctx, pp, u)
}

// GetFileDownload downloads a file using its hash via the /api/v1/dl/{hash} endpoint
func (pp *PhotoPrism) GetFileDownload(ctx context.Context, fileHash string) ([]byte, string, error) {
	u := fmt.Sprintf("%s/dl/%s?t=%s", pp.Url, url.PathEscape(fileHash), url.QueryEscape(pp.downloadToken))
	return doDownload(ctx, pp, u)
}

// ArchivePhotos archives (soft-deletes) multiple photos by their UIDs
func (pp *PhotoPrism) ArchivePhotos(ctx context.Context, photoUIDs []string) error {
	if len(photoUIDs) == 0 {
		return nil
	}

	selection := struct {
		Photos []string `json:"photos"`
	}{
		Photos: photoUIDs,
	}
	return doRequestRaw(ctx, pp, http.MethodPost, "batch/photos/archive", selection)
}
