package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"rawmatqc/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"partition": "p2020_2024"}
	info, err := s.Put(ctx, "partitions/p2020_2024/a.json", bytes.NewBufferString("{}"), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["partition"] = "mutated"
	if info.Size != 2 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, info.Key, bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := s.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || got.Metadata["partition"] != "p2020_2024" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	if _, err := s.Put(ctx, "partitions/p2015_2019/b.json", bytes.NewBufferString("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := s.List(ctx, "partitions/p2020")
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %+v (%v)", list, err)
	}
	if ok, _ := s.Delete(ctx, info.Key); !ok {
		t.Fatal("expected delete to report existing key")
	}
	if ok, _ := s.Delete(ctx, info.Key); ok {
		t.Fatal("expected second delete to report missing key")
	}
	if _, err := s.Head(ctx, info.Key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, info.Key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
}

func TestMemoryStorePutHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Put(ctx, "k", bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
