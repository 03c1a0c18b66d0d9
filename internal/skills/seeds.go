package skills

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"stratdesk/internal/logging"
)

//go:embed seeds/*/SKILL.md
var seedFS embed.FS

// EnsureSeeds installs the embedded default skills into the root for any
// seed not already present. Existing skills are never touched, so user edits
// to a seed survive restarts.
func (r *Registry) EnsureSeeds() error {
	entries, err := seedFS.ReadDir("seeds")
	if err != nil {
		return fmt.Errorf("skills: read seeds: %w", err)
	}
	log := logging.Get(logging.CategorySkills)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := os.Stat(filepath.Join(r.root, name, PrimaryFile)); err == nil {
			continue
		}
		content, err := seedFS.ReadFile("seeds/" + name + "/" + PrimaryFile)
		if err != nil {
			return fmt.Errorf("skills: read seed %s: %w", name, err)
		}
		if err := r.Create(name, string(content)); err != nil {
			return err
		}
		log.Info("installed seed skill: %s", name)
	}
	return nil
}
