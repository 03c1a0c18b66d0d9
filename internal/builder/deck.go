package builder

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"stratdesk/internal/artifact"
	"stratdesk/internal/logging"
)

// ValidateDeck validates every slide independently and returns all findings
// ordered by slide index. Slides are validated concurrently; validation is
// pure so ordering of the work does not matter.
func (b *Builder) ValidateDeck(slides []string) []SlideViolation {
	violations, _ := validateAll(slides)
	return violations
}

// validateAll runs per-slide validation concurrently, returning the combined
// findings plus each slide's extracted text blocks for conversion.
func validateAll(slides []string) ([]SlideViolation, [][]textBlock) {
	type result struct {
		violations []SlideViolation
		blocks     []textBlock
	}
	results := make([]result, len(slides))

	var g errgroup.Group
	g.SetLimit(8)
	for i, src := range slides {
		g.Go(func() error {
			violations, blocks := validateSlide(i, src)
			results[i] = result{violations, blocks}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; findings are data

	var all []SlideViolation
	blocks := make([][]textBlock, len(slides))
	for i, r := range results {
		all = append(all, r.violations...)
		blocks[i] = r.blocks
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Slide < all[j].Slide })
	return all, blocks
}

// GenerateDeck validates the slides, and on success converts them to a
// presentation payload registered with the artifact store. Blocking
// violations abort with ErrDeckInvalid and no partial output; lost-text
// warnings are returned alongside the metadata.
func (b *Builder) GenerateDeck(sessionID, title string, slides []string) (*artifact.Metadata, []SlideViolation, error) {
	if len(slides) == 0 {
		return nil, nil, ErrEmptyDeck
	}
	if _, err := b.workspaces.Init(sessionID); err != nil {
		return nil, nil, err
	}

	violations, slideBlocks := validateAll(slides)
	if Blocking(violations) {
		return nil, violations, fmt.Errorf("%w: %d finding(s)", ErrDeckInvalid, len(violations))
	}

	// Stage the validated markup so the session retains the deck source.
	for i, src := range slides {
		rel := fmt.Sprintf("slides/slide-%03d.html", i+1)
		if err := b.workspaces.WriteFile(sessionID, rel, []byte(src)); err != nil {
			return nil, violations, err
		}
	}

	payload, err := buildPPTX(slideBlocks)
	if err != nil {
		return nil, violations, fmt.Errorf("convert deck: %w", err)
	}
	meta, err := b.artifacts.Create(artifact.TypePresentation, title, payload)
	if err != nil {
		return nil, violations, err
	}

	logging.Get(logging.CategoryBuilder).Info("generated deck: session=%s slides=%d artifact=%s", sessionID, len(slides), meta.ID)
	return meta, violations, nil
}
