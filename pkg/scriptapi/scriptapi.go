// Package scriptapi defines the capability surface handed to sandboxed
// scripts. A script sees exactly this interface and nothing else: no process
// environment, no network, no filesystem outside its session workspace.
package scriptapi

import "fmt"

// Workspace is the filesystem capability bound to one session root. All
// paths are relative to that root; implementations reject traversal above it.
type Workspace interface {
	// Root returns the absolute session root path. Useful for messages;
	// scripts cannot open it directly since they have no os access.
	Root() string

	// ReadFile returns the content of a file under the root.
	ReadFile(relPath string) (string, error)

	// WriteFile writes content to a path under the root, creating parent
	// directories as needed.
	WriteFile(relPath, content string) error

	// List returns the entry names under a directory; directories carry a
	// trailing slash.
	List(relPath string) ([]string, error)

	// Remove deletes a file under the root.
	Remove(relPath string) error
}

// ExitError signals a deliberate non-zero completion from a script. The
// executor maps it to the result's exit code instead of treating it as a
// thrown error.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("script exited with code %d", e.Code)
	}
	return fmt.Sprintf("script exited with code %d: %s", e.Code, e.Message)
}

// Exit returns an error that makes the script complete with the given exit
// code. Returning nil-equivalent (code 0) is not supported; return nil from
// Run instead.
func Exit(code int, message string) error {
	return &ExitError{Code: code, Message: message}
}
