// Package workspace owns the lifecycle of per-session working directories.
// Every session gets an isolated root with fixed subdirectories; all paths
// handed to a workspace operation are confined to that root.
package workspace

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stratdesk/internal/logging"
)

// Subdirectories created under every session root.
var sessionSubdirs = []string{"slides", "output", "thumbnails"}

// Entry describes one item returned by ListFiles.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Manager creates, reads, writes and destroys session workspaces under a
// single base directory. It is safe for concurrent use across sessions;
// callers serialize operations within one session.
type Manager struct {
	base string
}

// NewManager returns a manager rooted at base. The base directory itself is
// created lazily on first Init.
func NewManager(base string) *Manager {
	return &Manager{base: base}
}

// Path returns the session root path without touching the filesystem. It is
// a pure function of the session id.
func (m *Manager) Path(sessionID string) string {
	return filepath.Join(m.base, sessionID)
}

// Init creates the session root and its fixed subdirectories, returning the
// root path. Calling it twice for the same session is a no-op.
func (m *Manager) Init(sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	root := m.Path(sessionID)
	for _, sub := range sessionSubdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return "", fmt.Errorf("init workspace %s: %w", sessionID, err)
		}
	}
	logging.Get(logging.CategoryWorkspace).Debug("initialized workspace: %s", root)
	return root, nil
}

// WriteFile writes content to a path relative to the session root, creating
// intermediate directories as needed.
func (m *Manager) WriteFile(sessionID, relPath string, content []byte) error {
	abs, err := m.resolve(sessionID, relPath)
	if err != nil {
		return err
	}
	if _, err := m.Init(sessionID); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	logging.Get(logging.CategoryWorkspace).Debug("wrote %s (%d bytes) in session %s", relPath, len(content), sessionID)
	return nil
}

// ReadFile returns the content of a file relative to the session root.
func (m *Manager) ReadFile(sessionID, relPath string) ([]byte, error) {
	abs, err := m.resolve(sessionID, relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	return data, nil
}

// ReadFileBase64 returns the standard base64 encoding of a file's bytes.
func (m *Manager) ReadFileBase64(sessionID, relPath string) (string, error) {
	data, err := m.ReadFile(sessionID, relPath)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ListFiles returns the entries under subPath (or the session root when
// subPath is empty), sorted by name.
func (m *Manager) ListFiles(sessionID, subPath string) ([]Entry, error) {
	abs, err := m.resolve(sessionID, subPath)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, subPath)
		}
		return nil, fmt.Errorf("list %s: %w", subPath, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		e := Entry{Name: d.Name(), IsDir: d.IsDir()}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Cleanup removes the whole session workspace. A session that never existed
// is not an error; callers use Cleanup as an unconditional finalizer.
func (m *Manager) Cleanup(sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	root := m.Path(sessionID)
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("cleanup workspace %s: %w", sessionID, err)
	}
	logging.Get(logging.CategoryWorkspace).Debug("removed workspace: %s", root)
	return nil
}

// resolve validates the session id and joins relPath under the session root,
// rejecting any path that would land outside it.
func (m *Manager) resolve(sessionID, relPath string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	root := m.Path(sessionID)
	if relPath == "" {
		return root, nil
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesWorkspace, relPath)
	}
	abs := filepath.Join(root, relPath)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesWorkspace, relPath)
	}
	return abs, nil
}

// validateSessionID ensures the id can only name a direct child of the base
// directory. Session ids are opaque slugs (UUIDs in practice).
func validateSessionID(sessionID string) error {
	if sessionID == "" || sessionID == "." || sessionID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	if strings.ContainsAny(sessionID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	return nil
}
