package skills

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// PrimaryFile is the structured document every skill directory carries.
const PrimaryFile = "SKILL.md"

// Meta is the YAML frontmatter header of a skill's primary file.
type Meta struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Triggers    []string `yaml:"triggers"`
}

// Summary is the lightweight listing form of a skill.
type Summary struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Triggers    []string `json:"triggers"`
	Path        string   `json:"path"`
}

// Skill is the full loaded form: metadata plus instruction body.
type Skill struct {
	Meta Meta   `json:"meta"`
	Body string `json:"body"`
	Path string `json:"path"`
}

const frontmatterDelim = "---"

// parseDocument splits a skill document into frontmatter metadata and body.
// A document without a parsable header returns an error along with the whole
// content as body, so callers can degrade instead of dropping the skill.
func parseDocument(content []byte) (Meta, string, error) {
	s := string(content)
	trimmed := strings.TrimLeft(s, "\uFEFF\n\r")
	if !strings.HasPrefix(trimmed, frontmatterDelim+"\n") && trimmed != frontmatterDelim {
		return Meta{}, s, fmt.Errorf("missing frontmatter header")
	}

	rest := trimmed[len(frontmatterDelim)+1:]
	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx < 0 {
		return Meta{}, s, fmt.Errorf("unterminated frontmatter header")
	}
	header := rest[:idx]
	body := rest[idx+len(frontmatterDelim)+1:]
	body = strings.TrimPrefix(body, "\n")

	var meta Meta
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return Meta{}, s, fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, body, nil
}

// renderDocument produces a skill document from metadata and body.
func renderDocument(meta Meta, body string) ([]byte, error) {
	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(header)
	buf.WriteString(frontmatterDelim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// firstHeading extracts the text of the first markdown heading, used as the
// best-effort title for skills with malformed metadata.
func firstHeading(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			var sb strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(source))
				}
			}
			title = strings.TrimSpace(sb.String())
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

// applyDefaults backfills missing metadata fields from the directory name
// and document body.
func applyDefaults(meta Meta, dirName string, body []byte) Meta {
	if meta.Name == "" {
		meta.Name = dirName
	}
	if meta.Title == "" {
		if h := firstHeading(body); h != "" {
			meta.Title = h
		} else {
			meta.Title = dirName
		}
	}
	return meta
}
