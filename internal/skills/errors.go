package skills

import "errors"

// Skill registry errors.
var (
	// ErrSkillNotFound is returned for operations on an unknown skill name.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrFileNotFound is returned when a skill exists but the requested
	// backing file does not.
	ErrFileNotFound = errors.New("skill file not found")

	// ErrInvalidName is returned for names that cannot form a directory.
	ErrInvalidName = errors.New("invalid skill name")
)

// IsNotFound reports whether err is a skill or skill-file not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSkillNotFound) || errors.Is(err, ErrFileNotFound)
}
