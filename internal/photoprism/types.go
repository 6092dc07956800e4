package photoprism

import "time"

// Photo represents a PhotoPrism photo as returned by the search API
type Photo struct {
	UID          string `json:"UID"`
	Type         string `json:"Type"`
	Title        string `json:"Title"`
	TakenAt      string `json:"TakenAt"`
	TakenAtLocal string `json:"TakenAtLocal"`
	Hash         string `json:"Hash"` // primary file hash, used for thumbnails
	Width        int    `json:"Width"`
	Height       int    `json:"Height"`
	OriginalName string `json:"OriginalName"`
	FileName     string `json:"FileName"`
	Path         string `json:"Path"`
	CameraModel  string `json:"CameraModel"`
}

// TakenAtMillis returns the capture time in epoch milliseconds, or 0 if unknown.
func (p Photo) TakenAtMillis() int64 {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, p.TakenAt); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
