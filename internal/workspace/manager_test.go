package workspace

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir())
}

func TestInitIdempotent(t *testing.T) {
	m := newTestManager(t)

	root1, err := m.Init("session-a")
	if err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	root2, err := m.Init("session-a")
	if err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if root1 != root2 {
		t.Errorf("Init not idempotent: %q vs %q", root1, root2)
	}

	for _, sub := range []string{"slides", "output", "thumbnails"} {
		info, err := os.Stat(filepath.Join(root1, sub))
		if err != nil || !info.IsDir() {
			t.Errorf("missing subdirectory %s: %v", sub, err)
		}
	}
	entries, err := os.ReadDir(root1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries after double init, want 3", len(entries))
	}
}

func TestPathIsPure(t *testing.T) {
	m := newTestManager(t)
	p := m.Path("never-created")
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("Path must not create the directory")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name    string
		relPath string
		content string
	}{
		{"plain ascii", "output/report.txt", "hello world"},
		{"multi-byte", "notes/greeting.txt", "héllo wörld — 日本語テキスト"},
		{"control chars", "raw.bin", "line1\nline2\ttab\x00null"},
		{"nested dirs", "a/b/c/deep.txt", "deep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.WriteFile("s1", tt.relPath, []byte(tt.content)); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			got, err := m.ReadFile("s1", tt.relPath)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if string(got) != tt.content {
				t.Errorf("round trip mismatch: got %q, want %q", got, tt.content)
			}
		})
	}
}

func TestReadFileBase64(t *testing.T) {
	m := newTestManager(t)
	raw := []byte{0x00, 0x01, 0xFF, 0xFE, 0x7F, 0x80}

	if err := m.WriteFile("s1", "output/blob.bin", raw); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := m.ReadFileBase64("s1", "output/blob.bin")
	if err != nil {
		t.Fatalf("ReadFileBase64 failed: %v", err)
	}
	want := base64.StdEncoding.EncodeToString(raw)
	if got != want {
		t.Errorf("base64 = %q, want %q", got, want)
	}
}

func TestReadMissingFileIsNotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Init("s1"); err != nil {
		t.Fatal(err)
	}
	_, err := m.ReadFile("s1", "absent.txt")
	if !IsNotFound(err) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	m := newTestManager(t)

	bad := []string{
		"../outside.txt",
		"../../etc/passwd",
		"output/../../escape.txt",
		"/absolute/path.txt",
	}
	for _, p := range bad {
		if err := m.WriteFile("s1", p, []byte("x")); !errors.Is(err, ErrPathEscapesWorkspace) {
			t.Errorf("WriteFile(%q) = %v, want ErrPathEscapesWorkspace", p, err)
		}
		if _, err := m.ReadFile("s1", p); !errors.Is(err, ErrPathEscapesWorkspace) {
			t.Errorf("ReadFile(%q) = %v, want ErrPathEscapesWorkspace", p, err)
		}
	}

	// A dot-dot that stays inside the root is fine.
	if err := m.WriteFile("s1", "output/../output/ok.txt", []byte("x")); err != nil {
		t.Errorf("in-root dot-dot rejected: %v", err)
	}
}

func TestInvalidSessionIDs(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := m.Init(id); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Init(%q) = %v, want ErrInvalidSession", id, err)
		}
	}
}

func TestListFiles(t *testing.T) {
	m := newTestManager(t)
	if err := m.WriteFile("s1", "output/b.txt", []byte("b")); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFile("s1", "output/a.txt", []byte("aa")); err != nil {
		t.Fatal(err)
	}

	entries, err := m.ListFiles("s1", "output")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	want := []Entry{
		{Name: "a.txt", Size: 2},
		{Name: "b.txt", Size: 1},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("ListFiles mismatch (-want +got):\n%s", diff)
	}

	root, err := m.ListFiles("s1", "")
	if err != nil {
		t.Fatalf("ListFiles root failed: %v", err)
	}
	var dirs int
	for _, e := range root {
		if e.IsDir {
			dirs++
		}
	}
	if dirs != 3 {
		t.Errorf("root should contain 3 directories, got %d", dirs)
	}
}

func TestCleanupNeverInitialized(t *testing.T) {
	m := newTestManager(t)
	if err := m.Cleanup("ghost-session"); err != nil {
		t.Errorf("Cleanup on missing workspace returned error: %v", err)
	}
}

func TestCleanupRemovesTree(t *testing.T) {
	m := newTestManager(t)
	if err := m.WriteFile("s1", "output/x.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := m.Cleanup("s1"); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(m.Path("s1")); !os.IsNotExist(err) {
		t.Error("workspace still present after Cleanup")
	}
}
