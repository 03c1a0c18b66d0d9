package sandbox

import (
	"os"
	"path/filepath"

	"stratdesk/internal/workspace"
	"stratdesk/pkg/scriptapi"
)

// wsBinding implements scriptapi.Workspace by delegating every call to the
// workspace manager, so path confinement lives in exactly one place.
type wsBinding struct {
	manager   *workspace.Manager
	sessionID string
}

var _ scriptapi.Workspace = (*wsBinding)(nil)

func (b *wsBinding) Root() string {
	return b.manager.Path(b.sessionID)
}

func (b *wsBinding) ReadFile(relPath string) (string, error) {
	data, err := b.manager.ReadFile(b.sessionID, relPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *wsBinding) WriteFile(relPath, content string) error {
	return b.manager.WriteFile(b.sessionID, relPath, []byte(content))
}

func (b *wsBinding) List(relPath string) ([]string, error) {
	entries, err := b.manager.ListFiles(b.sessionID, relPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}

func (b *wsBinding) Remove(relPath string) error {
	// Route through ReadFile's resolution rules by reusing the manager's
	// confinement: a path that reads as NotFound or escape fails the same
	// way here.
	if _, err := b.manager.ReadFile(b.sessionID, relPath); err != nil {
		return err
	}
	return os.Remove(filepath.Join(b.Root(), filepath.Clean(relPath)))
}
