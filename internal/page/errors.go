package page

import "errors"

var (
	// ErrBadMagic is returned when page 0 does not begin with "HARE".
	ErrBadMagic = errors.New("page: bad file magic")
	// ErrBadVersion is returned when the header's format version is
	// not one this build understands.
	ErrBadVersion = errors.New("page: unsupported format version")
	// ErrNegativeCount is returned when the decoded page count is
	// impossible (< 1, since page 0 always exists).
	ErrNegativeCount = errors.New("page: corrupt page count")
)
