package extract

import (
	"unicode"

	"github.com/jackzampolin/clinex/internal/annotation"
)

// ground locates each item's text in source and returns records with rune
// offsets. Items are expected in order of appearance, so the search starts
// where the previous match ended; an item not found after the cursor is
// searched for again from the beginning. Exact matches are preferred over
// case-insensitive ones. Items that cannot be located keep no span.
func ground(source string, items []Item) []annotation.Record {
	src := []rune(source)
	records := make([]annotation.Record, 0, len(items))
	cursor := 0

	for _, it := range items {
		rec := annotation.Record{Label: it.Class, Text: it.Text}
		if len(it.Attributes) > 0 {
			rec.Attributes = make(map[string]string, len(it.Attributes))
			for _, a := range it.Attributes {
				rec.Attributes[a.Key] = a.Value
			}
		}

		needle := []rune(it.Text)
		if start := locate(src, needle, cursor); start >= 0 {
			span := annotation.Span{Start: start, End: start + len(needle)}
			rec.Span = &span
			rec.Text = annotation.Snippet(src, span)
			cursor = span.End
		}
		records = append(records, rec)
	}
	return records
}

func locate(src, needle []rune, cursor int) int {
	if len(needle) == 0 {
		return -1
	}
	for _, eq := range []func(a, b rune) bool{exactRune, foldRune} {
		if i := indexFrom(src, needle, cursor, eq); i >= 0 {
			return i
		}
		if i := indexFrom(src, needle, 0, eq); i >= 0 {
			return i
		}
	}
	return -1
}

func indexFrom(src, needle []rune, from int, eq func(a, b rune) bool) int {
	for i := from; i+len(needle) <= len(src); i++ {
		j := 0
		for j < len(needle) && eq(src[i+j], needle[j]) {
			j++
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}

func exactRune(a, b rune) bool { return a == b }

func foldRune(a, b rune) bool {
	return unicode.ToLower(a) == unicode.ToLower(b)
}
