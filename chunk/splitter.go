package chunk

import "unicode"

// DefaultMaxChunkLen is the default maximum chunk length in runes,
// sized to stay well inside embedding-model input limits.
const DefaultMaxChunkLen = 2000

// DefaultOverlap is the default number of overlapping runes between
// consecutive chunks.
const DefaultOverlap = 200

// Splitter splits document text into overlapping chunks bounded by a
// maximum length. Chunk boundaries prefer paragraph and sentence
// breaks over hard truncation, but a boundary is only accepted inside
// the trailing overlap zone of the window, so consecutive chunks never
// leave a gap: every chunk covers at least maxLen-overlap runes of new
// text, and a text of length L always yields ceil(L/(maxLen-overlap))
// chunks.
type Splitter struct {
	maxLen  int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithMaxChunkLen sets the maximum chunk length in runes.
func WithMaxChunkLen(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(n int) Option {
	return func(s *Splitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		maxLen:  DefaultMaxChunkLen,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for forward progress.
	if s.overlap >= s.maxLen {
		s.overlap = s.maxLen / 4
	}

	return s
}

// Split splits text into overlapping chunks. Empty text yields no
// chunks; text no longer than the maximum yields exactly one.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.maxLen {
		return []string{text}
	}

	advance := s.maxLen - s.overlap
	chunks := make([]string, 0, len(runes)/advance+1)

	for start := 0; start < len(runes); start += advance {
		end := start + s.maxLen
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			continue
		}

		cut := boundaryCut(runes[start:end], advance)
		chunks = append(chunks, string(runes[start:start+cut]))
	}

	return chunks
}

// MaxChunkLen returns the configured maximum chunk length in runes.
func (s *Splitter) MaxChunkLen() int {
	return s.maxLen
}

// boundaryCut picks the cut position for a full window, preferring the
// latest paragraph break, then sentence end, then word break at or
// after lo. Without any boundary in the zone the window is cut hard at
// its full length.
func boundaryCut(window []rune, lo int) int {
	// Paragraph break: cut after the blank line.
	for i := len(window) - 1; i > lo; i-- {
		if window[i-1] == '\n' && window[i] == '\n' {
			return i + 1
		}
	}

	// Sentence end: cut after the terminator, before the space.
	for i := len(window) - 1; i > lo; i-- {
		if unicode.IsSpace(window[i]) && isSentenceEnd(window[i-1]) {
			return i
		}
	}

	// Word break.
	for i := len(window) - 1; i > lo; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}

	return len(window)
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
