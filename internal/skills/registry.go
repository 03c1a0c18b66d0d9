// Package skills discovers, loads, mutates and matches reusable instruction
// bundles. Each skill lives in its own directory under a shared root:
// a SKILL.md primary document (YAML frontmatter + markdown body) plus any
// auxiliary files.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"stratdesk/internal/logging"
)

// Registry scans and mutates the skill storage root. It is safe for
// concurrent use; readers tolerate a concurrent writer because content
// updates are atomic rename-over replacements.
type Registry struct {
	root string

	mu      sync.RWMutex
	cache   []Summary
	cacheOK bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry returns a registry over the given skills root, creating the
// directory if needed.
func NewRegistry(root string) (*Registry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("skills: create root: %w", err)
	}
	return &Registry{root: root}, nil
}

// Root returns the skill storage root path.
func (r *Registry) Root() string { return r.root }

// Watch starts an fsnotify watcher on the skills root so out-of-band edits
// (a skill dropped in by hand) invalidate the summary cache. Optional;
// mutations through the registry invalidate the cache on their own.
func (r *Registry) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("skills: watcher: %w", err)
	}
	if err := w.Add(r.root); err != nil {
		w.Close()
		return fmt.Errorf("skills: watch %s: %w", r.root, err)
	}

	r.mu.Lock()
	r.watcher = w
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		log := logging.Get(logging.CategorySkills)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				log.Debug("skills root changed: %s", ev)
				r.invalidate()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("skills watcher error: %v", err)
			case <-done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

func (r *Registry) invalidate() {
	r.mu.Lock()
	r.cacheOK = false
	r.mu.Unlock()
}

// List returns summaries for every skill directory under the root, sorted by
// name. A skill whose metadata is malformed is still listed with best-effort
// defaults rather than omitted.
func (r *Registry) List() ([]Summary, error) {
	r.mu.RLock()
	if r.cacheOK {
		out := make([]Summary, len(r.cache))
		copy(out, r.cache)
		r.mu.RUnlock()
		return out, nil
	}
	r.mu.RUnlock()

	summaries, err := r.scan()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache = summaries
	r.cacheOK = true
	r.mu.Unlock()

	out := make([]Summary, len(summaries))
	copy(out, summaries)
	return out, nil
}

func (r *Registry) scan() ([]Summary, error) {
	log := logging.Get(logging.CategorySkills)
	dirents, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("skills: scan root: %w", err)
	}

	var summaries []Summary
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		primary := filepath.Join(r.root, d.Name(), PrimaryFile)
		content, err := os.ReadFile(primary)
		if err != nil {
			// A directory without a primary document is not a skill.
			continue
		}
		meta, body, perr := parseDocument(content)
		if perr != nil {
			log.Warn("skill %s has malformed metadata, using defaults: %v", d.Name(), perr)
		}
		meta = applyDefaults(meta, d.Name(), []byte(body))
		summaries = append(summaries, Summary{
			Name:        meta.Name,
			Title:       meta.Title,
			Description: meta.Description,
			Triggers:    meta.Triggers,
			Path:        primary,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// Load returns the full skill: metadata plus instruction body.
func (r *Registry) Load(name string) (*Skill, error) {
	dir, err := r.skillDir(name)
	if err != nil {
		return nil, err
	}
	primary := filepath.Join(dir, PrimaryFile)
	content, err := os.ReadFile(primary)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return nil, fmt.Errorf("skills: load %s: %w", name, err)
	}
	meta, body, perr := parseDocument(content)
	if perr != nil {
		logging.Get(logging.CategorySkills).Warn("skill %s metadata malformed on load: %v", name, perr)
	}
	meta = applyDefaults(meta, name, []byte(body))
	return &Skill{Meta: meta, Body: body, Path: primary}, nil
}

// GetPrompt wraps the skill's content in a delimited block the orchestrator
// can splice into an agent prompt.
func (r *Registry) GetPrompt(name string) (string, error) {
	skill, err := r.Load(name)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<skill name=%q>\n", skill.Meta.Name)
	sb.WriteString("Follow this skill's stated capabilities when handling the request.\n\n")
	sb.WriteString(strings.TrimRight(skill.Body, "\n"))
	sb.WriteString("\n</skill>")
	return sb.String(), nil
}

// GetMultiPrompt concatenates per-skill prompt blocks in input order. An
// empty name list yields the empty string; a single name is identical to
// GetPrompt.
func (r *Registry) GetMultiPrompt(names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	blocks := make([]string, 0, len(names))
	for _, name := range names {
		block, err := r.GetPrompt(name)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

// DetectTriggers returns every skill with at least one trigger phrase
// present in the input as a contiguous case-insensitive substring, in
// registry (listing) order. Phrases are not tokenized or fuzzy-matched.
func (r *Registry) DetectTriggers(freeText string) ([]Summary, error) {
	summaries, err := r.List()
	if err != nil {
		return nil, err
	}
	haystack := strings.ToLower(freeText)
	var matched []Summary
	for _, s := range summaries {
		for _, phrase := range s.Triggers {
			if phrase == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(phrase)) {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched, nil
}

// ListFiles returns the names of all files in a skill's backing directory,
// relative to it, sorted. Nested auxiliary files are included.
func (r *Registry) ListFiles(name string) ([]string, error) {
	dir, err := r.skillDir(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return nil, fmt.Errorf("skills: stat %s: %w", name, err)
	}

	var files []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("skills: walk %s: %w", name, err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile returns the content of one file in a skill's backing directory.
func (r *Registry) ReadFile(name, filename string) ([]byte, error) {
	dir, err := r.skillDir(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return nil, fmt.Errorf("skills: stat %s: %w", name, err)
	}

	abs := filepath.Join(dir, filepath.Clean(filename))
	rel, err := filepath.Rel(dir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		return nil, fmt.Errorf("skills: read %s/%s: %w", name, filename, err)
	}
	return data, nil
}

// Create writes a skill's primary document, creating its directory.
// Creating an existing name overwrites it (idempotent-overwrite). A document
// with parsable frontmatter is normalized on the way in: missing name/title
// are backfilled and the header re-rendered. Malformed documents are stored
// as-is and degrade to defaults on read.
func (r *Registry) Create(name, content string) error {
	dir, err := r.skillDir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("skills: create %s: %w", name, err)
	}

	doc := []byte(content)
	if meta, body, perr := parseDocument(doc); perr == nil {
		meta = applyDefaults(meta, name, []byte(body))
		body = strings.TrimLeft(body, "\n")
		if rendered, rerr := renderDocument(meta, body); rerr == nil {
			doc = rendered
		}
	}
	if err := r.writeAtomic(filepath.Join(dir, PrimaryFile), doc); err != nil {
		return err
	}
	r.invalidate()
	logging.Get(logging.CategorySkills).Info("created skill: %s", name)
	return nil
}

// Update replaces an existing skill's primary document; unknown names fail.
func (r *Registry) Update(name, content string) error {
	dir, err := r.skillDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, PrimaryFile)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return fmt.Errorf("skills: stat %s: %w", name, err)
	}
	if err := r.writeAtomic(filepath.Join(dir, PrimaryFile), []byte(content)); err != nil {
		return err
	}
	r.invalidate()
	logging.Get(logging.CategorySkills).Info("updated skill: %s", name)
	return nil
}

// Delete removes a skill and its whole backing directory; unknown names fail.
func (r *Registry) Delete(name string) error {
	dir, err := r.skillDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return fmt.Errorf("skills: stat %s: %w", name, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("skills: delete %s: %w", name, err)
	}
	r.invalidate()
	logging.Get(logging.CategorySkills).Info("deleted skill: %s", name)
	return nil
}

// writeAtomic replaces path via a temp file and rename so concurrent readers
// never observe a partial document.
func (r *Registry) writeAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("skills: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("skills: replace %s: %w", path, err)
	}
	return nil
}

// reservedNames are path segments claimed by the HTTP boundary under
// /skills/; a skill carrying one would be unreachable there.
var reservedNames = map[string]bool{
	"detect": true,
}

// skillDir validates the name and returns its directory path.
func (r *Registry) skillDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		reservedNames[name] || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(r.root, name), nil
}
