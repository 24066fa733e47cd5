package decode

import "fmt"

// maxRawLen bounds how much of a bad body is kept on a SyntaxError.
const maxRawLen = 512

// SyntaxError is returned when a blocking completion body is not JSON.
type SyntaxError struct {
	// Raw is the start of the offending body.
	Raw string
}

func newSyntaxError(body []byte) *SyntaxError {
	raw := body
	if len(raw) > maxRawLen {
		raw = raw[:maxRawLen]
	}
	return &SyntaxError{Raw: string(raw)}
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("completion body is not valid JSON (%d bytes shown)", len(e.Raw))
}

// ReadError reports a connection-level failure while reading a stream.
type ReadError struct {
	// Fragments is how many fragments were delivered before the failure.
	Fragments int

	// Cause is the underlying read error.
	Cause error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("stream read failed after %d fragments: %v", e.Fragments, e.Cause)
}

// Unwrap returns the underlying read error.
func (e *ReadError) Unwrap() error {
	return e.Cause
}
