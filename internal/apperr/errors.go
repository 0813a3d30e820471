// Package apperr defines the sentinel errors shared across the engine.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid argument")

	// Skip and short-circuit conditions. Only ErrMissingRoot ends a pass early.
	ErrUnreadableFile      = errors.New("unreadable file")
	ErrMalformedFrontBlock = errors.New("malformed front-block")
	ErrMissingRoot         = errors.New("org root missing")
	ErrAmbiguousInput      = errors.New("ambiguous hook input")
	ErrWriteFailure        = errors.New("artifact write failed")
)

// Diagnostic records one isolated failure (a skipped file, a failed write).
type Diagnostic struct {
	Path string
	Err  error
}

func (d Diagnostic) Error() string {
	return d.Path + ": " + d.Err.Error()
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Count returns how many diagnostics match target.
func Count(diags []Diagnostic, target error) int {
	n := 0
	for _, d := range diags {
		if errors.Is(d.Err, target) {
			n++
		}
	}
	return n
}
