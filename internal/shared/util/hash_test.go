package util

import "testing"

func TestHashScopeKey(t *testing.T) {
	scope := "documents"
	got := HashScopeKey(scope)
	if got != HashScopeKey(scope) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	if _, err := SanitizeFileName("../evil.txt"); err == nil {
		t.Fatal("expected traversal rejection")
	}
	if _, err := SanitizeFileName("  "); err == nil {
		t.Fatal("expected empty name rejection")
	}
	got, err := SanitizeFileName("dir/prd v1.txt")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if got != "dir_prd v1.txt" {
		t.Fatalf("got %q", got)
	}
}
