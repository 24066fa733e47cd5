package decode

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Sentinel is the payload that marks the end of a completion stream.
const Sentinel = "[DONE]"

const (
	dataPrefix = "data: "

	// maxLineSize bounds a single SSE line.
	maxLineSize = 1 << 20
)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// OnClose registers fn to run once when the stream is closed, whether by
// reaching its end or by an explicit Close.
func OnClose(fn func()) StreamOption {
	return func(s *Stream) {
		s.onClose = append(s.onClose, fn)
	}
}

// Stream is a pull iterator over the text fragments of a streamed
// completion. It is not safe for concurrent use, except that Close may be
// called from another goroutine to abort a blocked Next.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	onClose []func()

	current   string
	fragments int
	err       error
	done      bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream returns a Stream reading SSE lines from body.
// The stream owns body and closes it.
func NewStream(body io.ReadCloser, opts ...StreamOption) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	s := &Stream{
		body:    body,
		scanner: scanner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next advances to the next fragment. It returns false once the sentinel
// has been read, the body is exhausted, a read fails, or the stream was
// closed. After Next returns false it keeps returning false.
func (s *Stream) Next() bool {
	if s.done || s.closed.Load() {
		s.current = ""
		return false
	}

	for s.scanner.Scan() {
		payload, ok := dataPayload(s.scanner.Text())
		if !ok {
			continue
		}

		if payload == Sentinel {
			s.finish(nil)
			return false
		}

		content, ok := chunkContent(payload)
		if !ok {
			continue
		}

		s.current = content
		s.fragments++
		return true
	}

	var err error
	if scanErr := s.scanner.Err(); scanErr != nil && !s.closed.Load() {
		err = &ReadError{Fragments: s.fragments, Cause: scanErr}
	}
	s.finish(err)
	return false
}

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() string {
	return s.current
}

// Fragments returns the number of fragments delivered so far.
func (s *Stream) Fragments() int {
	return s.fragments
}

// Err returns the read error that ended the stream, or nil if it ended at
// the sentinel, at EOF, or by Close.
func (s *Stream) Err() error {
	return s.err
}

// Done reports whether the stream has ended.
func (s *Stream) Done() bool {
	return s.done || s.closed.Load()
}

// Collect drains the remaining fragments and returns their concatenation.
// The returned text is whatever arrived before any read error.
func (s *Stream) Collect() (string, error) {
	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.current)
	}
	return sb.String(), s.Err()
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
		for _, fn := range s.onClose {
			fn()
		}
	})
	return s.closeErr
}

func (s *Stream) finish(err error) {
	s.done = true
	s.current = ""
	s.err = err
	_ = s.Close()
}

// dataPayload returns the trimmed payload of a "data: " line.
func dataPayload(line string) (string, bool) {
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(dataPrefix):]), true
}
