package logging

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/runs.jsonl"
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	rec := RunRecord{Site: "behounkova", Timestamp: time.Now(), Error: strings.Repeat("x", 64*1024)}
	for i := 0; i < 20; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	files, _ := filepath.Glob(dir + "/runs*.jsonl")
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/runs.jsonl"
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	now := time.Now()
	_ = store.Append(context.Background(), RunRecord{RunID: "1", Site: "behounkova", Timestamp: now})
	_ = store.Append(context.Background(), RunRecord{RunID: "2", Site: "rabasova", Timestamp: now})
	out, err := store.Query(context.Background(), RunQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	out, err = store.Query(context.Background(), RunQuery{Site: "rabasova"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].RunID != "2" {
		t.Fatalf("unexpected records %+v", out)
	}
}
