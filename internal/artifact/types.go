package artifact

import (
	"errors"
	"fmt"
	"time"
)

// Type is the closed enumeration of artifact kinds. Extension and MIME type
// are derived from it through a single lookup table; they are never supplied
// independently.
type Type string

const (
	// TypeSpreadsheet is a generated multi-sheet workbook.
	TypeSpreadsheet Type = "spreadsheet"

	// TypePresentation is a generated slide deck.
	TypePresentation Type = "presentation"

	// TypeDocument is an externally produced self-contained document. It is
	// admitted only through RegisterExternalFile, never through Create.
	TypeDocument Type = "document"
)

type typeInfo struct {
	Extension string
	MIME      string
}

var typeTable = map[Type]typeInfo{
	TypeSpreadsheet: {
		Extension: "xlsx",
		MIME:      "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	},
	TypePresentation: {
		Extension: "pptx",
		MIME:      "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	},
	TypeDocument: {
		Extension: "html",
		MIME:      "text/html",
	},
}

// Store errors.
var (
	// ErrUnsupportedType is returned for any type outside the closed
	// enumeration, including legacy aliases ("excel", "pptx", "csv").
	ErrUnsupportedType = errors.New("unsupported artifact type")

	// ErrNotFound is returned by byte and stream lookups for unknown ids.
	ErrNotFound = errors.New("artifact not found")
)

// Info returns the derived extension and MIME type for a valid type.
func (t Type) Info() (ext, mime string, err error) {
	info, ok := typeTable[t]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, string(t))
	}
	return info.Extension, info.MIME, nil
}

// generatable reports whether Create accepts the type. The generic document
// type exists only for externally registered files.
func (t Type) generatable() bool {
	return t == TypeSpreadsheet || t == TypePresentation
}

// Metadata is the persisted record describing one immutable artifact.
type Metadata struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
