package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/photo-dedup/internal/database"
	"github.com/kozaktomas/photo-dedup/internal/database/mock"
)

func TestListDeletions(t *testing.T) {
	t.Cleanup(func() { database.RegisterPostgresBackend(nil) })

	t.Run("not configured", func(t *testing.T) {
		database.RegisterPostgresBackend(nil)
		recorder := httptest.NewRecorder()
		ListDeletions(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/deletions", nil))
		assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	})

	deletions := mock.NewMockDeletionLog()
	ctx := context.Background()
	deletions.RecordDeletion(ctx, "/p/a.jpg", []string{"/p/b.jpg", "/p/c.jpg"})
	deletions.RecordDeletion(ctx, "/p/d.jpg", []string{"/p/e.jpg"})
	database.RegisterPostgresBackend(func() database.DeletionWriter { return deletions })

	t.Run("lists newest first", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		ListDeletions(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/deletions?limit=1", nil))
		assertStatusCode(t, recorder, http.StatusOK)

		var body struct {
			Records []struct {
				Keep    string   `json:"keep"`
				Deleted []string `json:"deleted"`
			} `json:"records"`
			TotalDeleted int `json:"total_deleted"`
		}
		parseJSONResponse(t, recorder, &body)
		if len(body.Records) != 1 || body.Records[0].Keep != "/p/d.jpg" {
			t.Errorf("unexpected records: %+v", body.Records)
		}
		if body.TotalDeleted != 3 {
			t.Errorf("total_deleted = %d, want 3", body.TotalDeleted)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		ListDeletions(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/deletions?limit=abc", nil))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "invalid limit")
	})
}
