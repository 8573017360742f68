package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"kittycore/internal/blob/core"
)

func TestMemoryStorePutGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	info, err := s.Put(ctx, "snapshots/b.json", strings.NewReader("{}"), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"total": "2"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 2 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "snapshots/a.json", strings.NewReader("[]"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "other", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, body, err := s.Get(ctx, "snapshots/b.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if string(data) != "{}" {
		t.Fatalf("unexpected body %q", data)
	}

	head, err := s.Head(ctx, "snapshots/b.json")
	if err != nil || head.Metadata["total"] != "2" {
		t.Fatalf("unexpected head %+v err=%v", head, err)
	}
	head.Metadata["total"] = "mutated"
	if again, _ := s.Head(ctx, "snapshots/b.json"); again.Metadata["total"] != "2" {
		t.Fatalf("expected metadata to be copied")
	}

	list, err := s.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "snapshots/a.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, "k", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("2"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
