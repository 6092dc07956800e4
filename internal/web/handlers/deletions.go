package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/photo-dedup/internal/database"
)

const defaultDeletionsLimit = 50

// ListDeletions returns the most recent entries of the deletion log
func ListDeletions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeletionsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	reader, err := database.GetDeletionReader(r.Context())
	if errors.Is(err, database.ErrNotInitialized) {
		respondError(w, http.StatusServiceUnavailable, "deletion log is not configured")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	records, err := reader.ListDeletions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := reader.CountDeleted(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type recordView struct {
		ID        int64    `json:"id"`
		Keep      string   `json:"keep"`
		Deleted   []string `json:"deleted"`
		CreatedAt string   `json:"created_at"`
	}
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, recordView{
			ID:        rec.ID,
			Keep:      rec.Keep,
			Deleted:   rec.Deleted,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records":       views,
		"total_deleted": total,
	})
}
