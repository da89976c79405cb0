package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

func TestMemoryStore_CreateListReadUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Create(ctx, repo.KindChecks, "b", repo.Record{"url": "b.example"}); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if err := s.Create(ctx, repo.KindChecks, "a", repo.Record{"url": "a.example"}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := s.Create(ctx, repo.KindChecks, "a", repo.Record{}); !errors.Is(err, repo.ErrExists) {
		t.Fatalf("want ErrExists on duplicate, got %v", err)
	}

	ids, err := s.List(ctx, repo.KindChecks)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	rec, err := s.Read(ctx, repo.KindChecks, "a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// mutating the returned copy must not leak into the store
	rec["state"] = "up"
	again, _ := s.Read(ctx, repo.KindChecks, "a")
	if _, ok := again["state"]; ok {
		t.Fatalf("store was mutated through a read copy")
	}

	if err := s.Update(ctx, repo.KindChecks, "a", rec); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ = s.Read(ctx, repo.KindChecks, "a")
	if again["state"] != "up" {
		t.Fatalf("update not visible: %+v", again)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Read(ctx, repo.KindChecks, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, repo.KindChecks, "nope", repo.Record{}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound on update, got %v", err)
	}
	ids, err := s.List(ctx, "empty")
	if err != nil || len(ids) != 0 {
		t.Fatalf("want empty list, got %v %v", ids, err)
	}
}
