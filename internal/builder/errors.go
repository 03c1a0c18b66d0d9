package builder

import "errors"

// Builder errors.
var (
	// ErrWorkbookNotFound is returned for an unknown (session, workbook) pair.
	ErrWorkbookNotFound = errors.New("workbook not found")

	// ErrSheetNotFound is returned when appending rows to an absent sheet.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrDuplicateSheet is returned when adding a sheet whose name already
	// exists in the workbook.
	ErrDuplicateSheet = errors.New("duplicate sheet name")

	// ErrWorkbookGenerated is returned for any mutation after a successful
	// generate; the transition is one-way.
	ErrWorkbookGenerated = errors.New("workbook already generated")

	// ErrDeckInvalid is returned when slide validation found blocking
	// violations; no partial output is produced.
	ErrDeckInvalid = errors.New("slide deck failed validation")

	// ErrEmptyDeck is returned when converting a deck with no slides.
	ErrEmptyDeck = errors.New("slide deck has no slides")
)
