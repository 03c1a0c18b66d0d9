package workspace

import "errors"

// Workspace errors.
var (
	// ErrNotFound is returned when a requested file or directory is absent.
	ErrNotFound = errors.New("workspace file not found")

	// ErrInvalidSession is returned for session ids that cannot name a
	// directory safely.
	ErrInvalidSession = errors.New("invalid session id")

	// ErrPathEscapesWorkspace is returned when a relative path resolves
	// outside the session root.
	ErrPathEscapesWorkspace = errors.New("path escapes workspace root")
)

// IsNotFound reports whether err is a workspace not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
