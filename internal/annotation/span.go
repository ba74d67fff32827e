package annotation

import "fmt"

// Span is a half-open [Start, End) interval of character offsets into a
// document's source text. Offsets count Unicode code points, not bytes.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of characters covered by the span.
func (s Span) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Valid reports whether 0 <= Start < End <= n.
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n
}

// Overlap returns the number of characters shared by both spans.
func (s Span) Overlap(o Span) int {
	lo := max(s.Start, o.Start)
	hi := min(s.End, o.End)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// IoU returns the intersection-over-union ratio of two spans, in [0, 1].
func (s Span) IoU(o Span) float64 {
	inter := s.Overlap(o)
	if inter == 0 {
		return 0
	}
	union := s.Len() + o.Len() - inter
	return float64(inter) / float64(union)
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Snippet returns the text covered by span in source. The span must be valid
// for source.
func Snippet(source []rune, s Span) string {
	return string(source[s.Start:s.End])
}
