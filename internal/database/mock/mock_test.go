package mock

import (
	"context"
	"errors"
	"testing"
)

func TestMockDeletionLog(t *testing.T) {
	ctx := context.Background()
	log := NewMockDeletionLog()

	if err := log.RecordDeletion(ctx, "a", []string{"b", "c"}); err != nil {
		t.Fatalf("RecordDeletion: %v", err)
	}
	if err := log.RecordDeletion(ctx, "d", []string{"e"}); err != nil {
		t.Fatalf("RecordDeletion: %v", err)
	}

	records, _ := log.ListDeletions(ctx, 0)
	if len(records) != 2 || records[0].Keep != "d" || records[1].ID != 1 {
		t.Errorf("unexpected records: %+v", records)
	}

	limited, _ := log.ListDeletions(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("expected 1 record with limit, got %d", len(limited))
	}

	if n, _ := log.CountDeleted(ctx); n != 3 {
		t.Errorf("CountDeleted = %d, want 3", n)
	}
	if ok, _ := log.WasDeleted(ctx, "c"); !ok {
		t.Error("expected c to be deleted")
	}
	if ok, _ := log.WasDeleted(ctx, "a"); ok {
		t.Error("kept uri must not be reported deleted")
	}

	log.RecordError = errors.New("boom")
	if err := log.RecordDeletion(ctx, "x", []string{"y"}); err == nil {
		t.Error("expected injected error")
	}
}
