package builder

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Canonical slide page size in CSS pixels. Every slide document must declare
// exactly this size on its body; computed or percentage sizing is rejected.
const (
	CanonicalWidth  = 1280
	CanonicalHeight = 720
)

// Validation rule identifiers carried in violations.
const (
	RuleParse       = "parse"        // document could not be parsed
	RulePageSize    = "page-size"    // body size differs from canonical
	RuleRootSpacing = "root-spacing" // nonzero margin/padding on the root container
	RuleDecoration  = "decoration"   // decorative style on a text-bearing element
	RuleLostText    = "lost-text"    // text outside paragraph/heading/list elements
)

// SlideViolation records one validation finding: which slide, which rule,
// and the offending value. Warnings (lost text) do not block conversion;
// everything else does.
type SlideViolation struct {
	Slide   int    `json:"slide"`
	Rule    string `json:"rule"`
	Value   string `json:"value"`
	Warning bool   `json:"warning"`
}

func (v SlideViolation) String() string {
	kind := "error"
	if v.Warning {
		kind = "warning"
	}
	return fmt.Sprintf("slide %d: %s (%s): %s", v.Slide, v.Rule, kind, v.Value)
}

// Blocking reports whether any violation prevents conversion.
func Blocking(violations []SlideViolation) bool {
	for _, v := range violations {
		if !v.Warning {
			return true
		}
	}
	return false
}

// textBlock is one extractable unit of slide text: the wrapping element tag
// plus its flattened inner text.
type textBlock struct {
	Tag  string
	Text string
}

// Element classes for validation. Generic containers may carry decorative
// styling; text elements are the only source of extractable text; inline
// elements are transparent wrappers that carry no text on their own.
var (
	containerTags = map[string]bool{
		"body": true, "div": true, "section": true, "article": true,
		"main": true, "figure": true, "header": true, "footer": true,
	}
	textTags = map[string]bool{
		"p": true, "h1": true, "h2": true, "h3": true, "h4": true,
		"h5": true, "h6": true, "li": true,
	}
	inlineTags = map[string]bool{
		"span": true, "a": true, "strong": true, "em": true, "b": true,
		"i": true, "u": true, "code": true, "small": true, "sup": true,
		"sub": true, "br": true,
	}
)

// decorative style properties, matched by prefix against declarations.
var decorativePrefixes = []string{"border", "background", "box-shadow"}

// validateSlide checks one slide document and extracts its text blocks in
// document order. Parse failures surface as violations, not errors.
func validateSlide(index int, src string) ([]SlideViolation, []textBlock) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return []SlideViolation{{Slide: index, Rule: RuleParse, Value: err.Error()}}, nil
	}

	body := findElement(doc, "body")
	if body == nil {
		return []SlideViolation{{Slide: index, Rule: RuleParse, Value: "document has no body"}}, nil
	}

	var violations []SlideViolation
	violations = append(violations, checkPageSize(index, body)...)
	violations = append(violations, checkRootSpacing(index, body)...)
	violations = append(violations, checkDecoration(index, body)...)

	blocks, lost := extractText(body)
	for _, text := range lost {
		violations = append(violations, SlideViolation{
			Slide:   index,
			Rule:    RuleLostText,
			Value:   text,
			Warning: true,
		})
	}
	return violations, blocks
}

func checkPageSize(index int, body *html.Node) []SlideViolation {
	style := parseStyle(attr(body, "style"))
	width := style["width"]
	height := style["height"]
	wantW := fmt.Sprintf("%dpx", CanonicalWidth)
	wantH := fmt.Sprintf("%dpx", CanonicalHeight)
	if width == wantW && height == wantH {
		return nil
	}
	return []SlideViolation{{
		Slide: index,
		Rule:  RulePageSize,
		Value: fmt.Sprintf("body size is %q x %q, must be %q x %q", width, height, wantW, wantH),
	}}
}

func checkRootSpacing(index int, body *html.Node) []SlideViolation {
	style := parseStyle(attr(body, "style"))
	var violations []SlideViolation
	for _, prop := range []string{"margin", "padding"} {
		if !isZeroSpacing(style[prop]) {
			violations = append(violations, SlideViolation{
				Slide: index,
				Rule:  RuleRootSpacing,
				Value: fmt.Sprintf("%s is %q, must be declared zero", prop, style[prop]),
			})
		}
	}
	return violations
}

// isZeroSpacing accepts "0", "0px", and multi-token forms where every token
// is zero. Absent declarations fail: the browser default body margin is not
// zero, so zero must be explicit.
func isZeroSpacing(value string) bool {
	if value == "" {
		return false
	}
	for _, tok := range strings.Fields(value) {
		if tok != "0" && tok != "0px" {
			return false
		}
	}
	return true
}

func checkDecoration(index int, root *html.Node) []SlideViolation {
	var violations []SlideViolation
	walkElements(root, func(n *html.Node) bool {
		if containerTags[n.Data] {
			return true
		}
		style := parseStyle(attr(n, "style"))
		for prop := range style {
			for _, prefix := range decorativePrefixes {
				if strings.HasPrefix(prop, prefix) {
					violations = append(violations, SlideViolation{
						Slide: index,
						Rule:  RuleDecoration,
						Value: fmt.Sprintf("<%s> carries %q, decorative styling is restricted to container elements", n.Data, prop),
					})
				}
			}
		}
		return true
	})
	return violations
}

// extractText collects text blocks from paragraph, heading and list
// elements in document order, and reports any non-whitespace text that has
// no such wrapper (directly in a container, or only inside inline elements)
// as lost.
func extractText(root *html.Node) (blocks []textBlock, lost []string) {
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.ElementNode:
				if textTags[c.Data] {
					if text := innerText(c); text != "" {
						blocks = append(blocks, textBlock{Tag: c.Data, Text: text})
					}
					continue // contents accounted for
				}
				if c.Data == "script" || c.Data == "style" {
					continue
				}
				visit(c)
			case html.TextNode:
				if text := strings.TrimSpace(c.Data); text != "" {
					lost = append(lost, text)
				}
			}
		}
	}
	visit(root)
	return blocks, lost
}

// innerText flattens all descendant text of a node, collapsing whitespace.
func innerText(n *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			} else if c.Type == html.ElementNode {
				visit(c)
			}
		}
	}
	visit(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// parseStyle splits an inline style attribute into a property map with
// lowercased keys and trimmed values.
func parseStyle(style string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		if key == "" {
			continue
		}
		props[key] = strings.TrimSpace(parts[1])
	}
	return props
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// walkElements visits every element under root (excluded) depth-first; the
// callback returning false prunes that subtree.
func walkElements(root *html.Node, fn func(*html.Node) bool) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if fn(c) {
			walkElements(c, fn)
		}
	}
}
