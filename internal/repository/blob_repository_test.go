package repository

import (
	"context"
	"errors"
	"testing"

	"secure-file-service/internal/domain"
)

func TestBlobRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBlobRepository(setupTestDB(t))

	if err := repo.Put(ctx, "b1", []byte("ciphertext")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := repo.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "ciphertext" {
		t.Errorf("want ciphertext, got %q", data)
	}

	if err := repo.Put(ctx, "empty", nil); err != nil {
		t.Fatalf("Put empty failed: %v", err)
	}
	if data, err := repo.Get(ctx, "empty"); err != nil || len(data) != 0 {
		t.Errorf("empty blob: %q, %v", data, err)
	}

	if err := repo.Delete(ctx, "b1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "b1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "b1"); err != nil {
		t.Errorf("deleting a missing blob should not fail: %v", err)
	}
}
