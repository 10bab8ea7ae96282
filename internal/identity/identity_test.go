package identity

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewToken_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	token, err := NewToken(now)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	re := regexp.MustCompile(`^session_1700000000123_[0-9a-z]{7}$`)
	if !re.MatchString(token) {
		t.Errorf("unexpected token %q", token)
	}
	if !Valid(token) {
		t.Errorf("generated token %q should be valid", token)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"session_1_abcdefg", true},
		{"abcd-EFG_9", true},
		{"short", false},
		{"has space in it", false},
		{"", false},
		{"semi;colon;token", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.token); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestGetOrCreate_StableForProcess(t *testing.T) {
	id := New(&MemoryStorage{})
	first, err := id.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := id.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != second {
		t.Errorf("tokens differ: %q vs %q", first, second)
	}
}

func TestGetOrCreate_ReusesStoredToken(t *testing.T) {
	store := &MemoryStorage{token: "session_42_existing"}
	got, err := New(store).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if got != "session_42_existing" {
		t.Errorf("got %q, want stored token", got)
	}
}

func TestGetOrCreate_ReplacesInvalidStoredToken(t *testing.T) {
	store := &MemoryStorage{token: "bad"}
	got, err := New(store).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if got == "bad" || !strings.HasPrefix(got, "session_") {
		t.Errorf("expected a fresh token, got %q", got)
	}
	if stored, _ := store.Load(); stored != got {
		t.Errorf("fresh token not persisted: stored %q", stored)
	}
}

func TestReset(t *testing.T) {
	id := New(&MemoryStorage{token: "session_42_existing"})
	fresh, err := id.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if fresh == "session_42_existing" {
		t.Error("Reset should produce a new token")
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStorage(path)

	got, err := fs.Load()
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if got != "" {
		t.Errorf("missing file should load empty, got %q", got)
	}

	first, err := New(fs).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("session file not created: %v", err)
	}

	// A second process sees the same session.
	second, err := New(NewFileStorage(path)).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != second {
		t.Errorf("token not persisted: %q vs %q", first, second)
	}
}

func TestFileStorage_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := New(NewFileStorage(path)).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !Valid(got) {
		t.Errorf("expected valid token, got %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandHome("~/x/y.json"); got != filepath.Join(home, "x/y.json") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}
