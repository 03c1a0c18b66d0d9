package artifact

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	meta, err := s.Create(TypeSpreadsheet, "Q3 Report", []byte("payload-bytes"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if meta.ID == "" || len(meta.ID) != 24 {
		t.Errorf("unexpected id: %q", meta.ID)
	}
	if meta.Filename != meta.ID+".xlsx" {
		t.Errorf("filename = %q, want derived from id and type", meta.Filename)
	}
	if !strings.Contains(meta.MIME, "spreadsheetml") {
		t.Errorf("mime = %q", meta.MIME)
	}
	if meta.Size != int64(len("payload-bytes")) {
		t.Errorf("size = %d", meta.Size)
	}

	got, err := s.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.ID != meta.ID || got.Type != TypeSpreadsheet {
		t.Errorf("Get mismatch: %+v", got)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Get returned error for missing artifact: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestUnsupportedTypes(t *testing.T) {
	s := newTestStore(t)

	for _, typ := range []string{"csv", "excel", "pptx", "xlsx", "powerpoint", "pdf", ""} {
		_, err := s.Create(Type(typ), "x", []byte("y"))
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Create(%q) = %v, want ErrUnsupportedType", typ, err)
		}
	}

	// The generic document type is reserved for external registration.
	if _, err := s.Create(TypeDocument, "x", []byte("y")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Create(document) = %v, want ErrUnsupportedType", err)
	}
}

func TestTypeDeterminesExtensionAndMIME(t *testing.T) {
	tests := []struct {
		typ  Type
		ext  string
		mime string
	}{
		{TypeSpreadsheet, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{TypePresentation, "pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		{TypeDocument, "html", "text/html"},
	}
	for _, tt := range tests {
		ext, mime, err := tt.typ.Info()
		if err != nil {
			t.Fatalf("Info(%s) failed: %v", tt.typ, err)
		}
		if ext != tt.ext || mime != tt.mime {
			t.Errorf("Info(%s) = (%q, %q)", tt.typ, ext, mime)
		}
	}
}

func TestRegisterExternalFile(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "report.html")
	if err := os.WriteFile(path, []byte("<html>report</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	meta, err := s.RegisterExternalFile("External Report", TypeDocument, path)
	if err != nil {
		t.Fatalf("RegisterExternalFile failed: %v", err)
	}
	if meta.MIME != "text/html" || !strings.HasSuffix(meta.Filename, ".html") {
		t.Errorf("derivation wrong: %+v", meta)
	}

	data, err := s.GetBytes(meta.ID)
	if err != nil {
		t.Fatalf("GetBytes failed: %v", err)
	}
	if string(data) != "<html>report</html>" {
		t.Errorf("payload = %q", data)
	}

	if _, err := s.RegisterExternalFile("x", Type("csv"), path); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("legacy type accepted: %v", err)
	}
}

func TestGetStream(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.Create(TypePresentation, "Deck", []byte("stream-me"))
	if err != nil {
		t.Fatal(err)
	}

	rc, streamMeta, err := s.GetStream(meta.ID)
	if err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	defer rc.Close()
	if streamMeta.ID != meta.ID {
		t.Errorf("stream metadata mismatch")
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "stream-me" {
		t.Errorf("stream = %q", data)
	}

	if _, _, err := s.GetStream("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStream(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Create(TypeSpreadsheet, "A", []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Create(TypePresentation, "B", []byte("b"))
	if err != nil {
		t.Fatal(err)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d, want 2", len(all))
	}

	ok, err := s.Delete(a.ID)
	if err != nil || !ok {
		t.Fatalf("Delete existing = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.Delete(a.ID)
	if err != nil || ok {
		t.Fatalf("Delete missing = (%v, %v), want (false, nil)", ok, err)
	}

	all, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != b.ID {
		t.Errorf("List after delete = %+v", all)
	}

	if _, err := s.GetBytes(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("payload still readable after delete: %v", err)
	}
}

func TestIDsDistinctForIdenticalContent(t *testing.T) {
	s := newTestStore(t)
	m1, err := s.Create(TypeSpreadsheet, "Same", []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	m2, err := s.Create(TypeSpreadsheet, "Same", []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if m1.ID == m2.ID {
		t.Error("salt must keep identical generations distinct")
	}
}
