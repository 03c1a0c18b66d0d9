// Package artifact is the immutable storage and retrieval layer for
// generated binary outputs. Payloads live on disk keyed by a content-derived
// identifier; a parallel sqlite index holds the metadata records.
package artifact

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	_ "github.com/mattn/go-sqlite3"

	"stratdesk/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	filename   TEXT NOT NULL,
	mime       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Store persists artifacts under a root directory:
//
//	<root>/artifacts.db   metadata index
//	<root>/files/<id>.<ext>  payloads
//
// Entries are immutable once created; Delete is the only later mutation.
type Store struct {
	root string
	db   *sql.DB
}

// NewStore opens (creating if necessary) the artifact store at root.
func NewStore(root string) (*Store, error) {
	filesDir := filepath.Join(root, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(root, "artifacts.db"))
	if err != nil {
		return nil, fmt.Errorf("artifact: open index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("artifact: init schema: %w", err)
	}
	return &Store{root: root, db: db}, nil
}

// Close releases the metadata index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create validates the type, derives extension and MIME, computes the
// content-derived id and stores metadata plus payload. Only spreadsheet and
// presentation are generatable; everything else fails with
// ErrUnsupportedType.
func (s *Store) Create(typ Type, title string, payload []byte) (*Metadata, error) {
	if !typ.generatable() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, string(typ))
	}
	return s.store(typ, title, payload)
}

// RegisterExternalFile admits an already-produced file into the store
// without regenerating it, subject to the same type/extension/MIME
// derivation. This is the only path that accepts TypeDocument.
func (s *Store) RegisterExternalFile(title string, typ Type, filePath string) (*Metadata, error) {
	if _, _, err := typ.Info(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("artifact: read external file: %w", err)
	}
	return s.store(typ, title, payload)
}

func (s *Store) store(typ Type, title string, payload []byte) (*Metadata, error) {
	ext, mime, err := typ.Info()
	if err != nil {
		return nil, err
	}

	id := deriveID(typ, title, payload)
	meta := &Metadata{
		ID:        id,
		Type:      typ,
		Title:     title,
		Filename:  fmt.Sprintf("%s.%s", id, ext),
		MIME:      mime,
		Size:      int64(len(payload)),
		CreatedAt: time.Now().UTC(),
	}

	if err := os.WriteFile(s.payloadPath(meta), payload, 0o644); err != nil {
		return nil, fmt.Errorf("artifact: write payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO artifacts (id, type, title, filename, mime, size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, string(meta.Type), meta.Title, meta.Filename, meta.MIME, meta.Size, meta.CreatedAt,
	)
	if err != nil {
		os.Remove(s.payloadPath(meta))
		return nil, fmt.Errorf("artifact: index insert: %w", err)
	}

	logging.Get(logging.CategoryArtifacts).Info("stored artifact: id=%s type=%s title=%q size=%d", meta.ID, meta.Type, meta.Title, meta.Size)
	return meta, nil
}

// Get returns the metadata for id, or nil when absent. A missing artifact is
// a normal case for callers, not an error.
func (s *Store) Get(id string) (*Metadata, error) {
	row := s.db.QueryRow(
		`SELECT id, type, title, filename, mime, size, created_at FROM artifacts WHERE id = ?`, id)
	meta, err := scanMetadata(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: get %s: %w", id, err)
	}
	return meta, nil
}

// GetBytes returns the full payload for id.
func (s *Store) GetBytes(id string) ([]byte, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(s.payloadPath(meta))
	if err != nil {
		return nil, fmt.Errorf("artifact: read payload %s: %w", id, err)
	}
	return data, nil
}

// GetStream returns a readable byte stream for large payloads, along with
// the metadata. The caller closes the stream.
func (s *Store) GetStream(id string) (io.ReadCloser, *Metadata, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if meta == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f, err := os.Open(s.payloadPath(meta))
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: open payload %s: %w", id, err)
	}
	return f, meta, nil
}

// Delete removes an artifact, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	meta, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, nil
	}
	if _, err := s.db.Exec(`DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("artifact: delete %s: %w", id, err)
	}
	if err := os.Remove(s.payloadPath(meta)); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("artifact: remove payload %s: %w", id, err)
	}
	logging.Get(logging.CategoryArtifacts).Info("deleted artifact: %s", id)
	return true, nil
}

// List returns all current artifact metadata, newest first.
func (s *Store) List() ([]Metadata, error) {
	rows, err := s.db.Query(
		`SELECT id, type, title, filename, mime, size, created_at FROM artifacts ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("artifact: list: %w", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("artifact: list scan: %w", err)
		}
		out = append(out, *meta)
	}
	return out, rows.Err()
}

func (s *Store) payloadPath(meta *Metadata) string {
	return filepath.Join(s.root, "files", meta.Filename)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(r rowScanner) (*Metadata, error) {
	var meta Metadata
	var typ string
	if err := r.Scan(&meta.ID, &typ, &meta.Title, &meta.Filename, &meta.MIME, &meta.Size, &meta.CreatedAt); err != nil {
		return nil, err
	}
	meta.Type = Type(typ)
	return &meta, nil
}

// deriveID hashes the artifact's defining content plus a random salt. The
// salt keeps two generations of identical content distinct while the hash
// keeps ids stable-length and opaque.
func deriveID(typ Type, title string, payload []byte) string {
	h := blake3.New()
	h.Write([]byte(string(typ)))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(uuid.NewString()))
	return fmt.Sprintf("%x", h.Sum(nil))[:24]
}
