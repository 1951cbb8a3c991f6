package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"impact-backend/internal/shared/util"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	key, size, mimeType, err := store.Save(context.Background(), "documents", "prd.txt", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if size != int64(len("hello world")) {
		t.Fatalf("size = %d, want %d", size, len("hello world"))
	}
	if !strings.HasPrefix(mimeType, "text/plain") {
		t.Fatalf("mime = %q, want text/plain", mimeType)
	}
	if !strings.HasPrefix(key, util.HashScopeKey("documents")+string(os.PathSeparator)) {
		t.Fatalf("key %q not namespaced by scope", key)
	}

	body, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "hello world" {
		t.Fatalf("content = %q", raw)
	}
}

func TestSaveWithKeyWritesExactPath(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	written, err := store.(interface {
		SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	}).SaveWithKey(context.Background(), "reports/r1.md", "text/markdown", strings.NewReader("# report"))
	if err != nil {
		t.Fatalf("save with key: %v", err)
	}
	if written != int64(len("# report")) {
		t.Fatalf("written = %d", written)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "reports", "r1.md"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(raw) != "# report" {
		t.Fatalf("content = %q", raw)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())

	if _, err := store.Open(context.Background(), "../secrets"); err == nil {
		t.Fatal("expected traversal rejection")
	}
	if _, err := store.Open(context.Background(), "/etc/passwd"); err == nil {
		t.Fatal("expected absolute path rejection")
	}
}
