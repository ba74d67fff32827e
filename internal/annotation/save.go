package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// exportRecord is the on-disk shape of a predicted record. It mirrors the
// export used by the extraction UI so the files load with either key set.
type exportRecord struct {
	Class      string            `json:"class"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
	Start      *int              `json:"start,omitempty"`
	End        *int              `json:"end,omitempty"`
	Snippet    string            `json:"snippet,omitempty"`
}

type exportFile struct {
	Extractions []exportRecord `json:"extractions"`
}

// Save writes records to path as {"extractions": [...]}. Grounded records
// carry their offsets and the source snippet they cover.
func Save(path, source string, records []Record) error {
	runes := []rune(source)
	out := exportFile{Extractions: make([]exportRecord, 0, len(records))}
	for _, r := range records {
		er := exportRecord{
			Class:      r.Label,
			Text:       r.Text,
			Attributes: r.Attributes,
		}
		if er.Attributes == nil {
			er.Attributes = map[string]string{}
		}
		if r.Span != nil && r.Span.Valid(len(runes)) {
			start, end := r.Span.Start, r.Span.End
			er.Start = &start
			er.End = &end
			er.Snippet = Snippet(runes, *r.Span)
		}
		out.Extractions = append(out.Extractions, er)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
