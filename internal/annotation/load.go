package annotation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/record.json
var schemaFS embed.FS

var (
	recordSchemaOnce sync.Once
	recordSchema     *jsonschema.Schema
	recordSchemaErr  error
)

// compiledRecordSchema compiles the embedded record schema once.
func compiledRecordSchema() (*jsonschema.Schema, error) {
	recordSchemaOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schemas/record.json")
		if err != nil {
			recordSchemaErr = fmt.Errorf("failed to read record schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("record.json", bytes.NewReader(raw)); err != nil {
			recordSchemaErr = fmt.Errorf("failed to load record schema: %w", err)
			return
		}
		recordSchema, recordSchemaErr = compiler.Compile("record.json")
	})
	return recordSchema, recordSchemaErr
}

// LoadOptions controls record validation.
type LoadOptions struct {
	// RequireSpan rejects records without character offsets. Span-based
	// match policies need it; text-based policies do not.
	RequireSpan bool
}

// LoadResult holds the usable records of a file and the ones rejected.
type LoadResult struct {
	Records  []Record
	Rejected []*RecordError
}

// rawRecord accepts both the "label" key and the "class" key written by the
// extraction export, and offsets either as start/end or as a two-element span.
type rawRecord struct {
	Label      string         `json:"label"`
	Class      string         `json:"class"`
	Text       string         `json:"text"`
	Start      *int           `json:"start"`
	End        *int           `json:"end"`
	Span       []int          `json:"span"`
	Attributes map[string]any `json:"attributes"`
}

// Load reads an annotation file and validates each record against source.
//
// The file is a JSON (or YAML, by extension) array of records, or an object
// with an "extractions" array. A file that fails to parse or has any other
// shape is rejected as a whole with an error wrapping ErrMalformedAnnotation;
// individual bad records are reported in LoadResult.Rejected and skipped.
func Load(path, source string, opts LoadOptions) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	items, err := decodeItems(path, data)
	if err != nil {
		return nil, err
	}

	schema, err := compiledRecordSchema()
	if err != nil {
		return nil, err
	}

	runes := []rune(source)
	result := &LoadResult{Records: make([]Record, 0, len(items))}
	for i, item := range items {
		rec, reason := parseRecord(schema, item, runes, opts)
		if reason != "" {
			result.Rejected = append(result.Rejected, &RecordError{Path: path, Index: i, Reason: reason})
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// decodeItems returns the record list of a file as generic JSON values.
func decodeItems(path string, data []byte) ([]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAnnotation, path, err)
		}
		// Round-trip through JSON so values have the types the schema
		// validator expects.
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAnnotation, path, err)
		}
		data = converted
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAnnotation, path, err)
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v["extractions"].([]any); ok {
			return list, nil
		}
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s: expected a list of records or an object with \"extractions\"", ErrMalformedAnnotation, path)
}

// parseRecord converts one generic item into a Record. A non-empty reason
// means the record is rejected.
func parseRecord(schema *jsonschema.Schema, item any, source []rune, opts LoadOptions) (Record, string) {
	if err := schema.Validate(item); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return Record{}, schemaReason(verr)
		}
		return Record{}, err.Error()
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return Record{}, err.Error()
	}
	var rr rawRecord
	if err := json.Unmarshal(raw, &rr); err != nil {
		return Record{}, err.Error()
	}

	label := strings.TrimSpace(rr.Label)
	if label == "" {
		label = strings.TrimSpace(rr.Class)
	}
	if label == "" {
		return Record{}, "label is missing"
	}

	rec := Record{Label: label, Text: rr.Text}

	var span *Span
	switch {
	case rr.Start != nil && rr.End != nil:
		span = &Span{Start: *rr.Start, End: *rr.End}
	case len(rr.Span) == 2:
		span = &Span{Start: rr.Span[0], End: rr.Span[1]}
	}

	if span != nil {
		if !span.Valid(len(source)) {
			return Record{}, fmt.Sprintf("span %s out of bounds for text of length %d", span, len(source))
		}
		rec.Span = span
		if rec.Text == "" {
			rec.Text = Snippet(source, *span)
		}
	} else {
		if opts.RequireSpan {
			return Record{}, "span is missing"
		}
		if strings.TrimSpace(rec.Text) == "" {
			return Record{}, "neither text nor span is set"
		}
	}

	if len(rr.Attributes) > 0 {
		rec.Attributes = make(map[string]string, len(rr.Attributes))
		for k, v := range rr.Attributes {
			rec.Attributes[k] = fmt.Sprint(v)
		}
	}
	return rec, ""
}

// schemaReason flattens a validation error into its leaf messages.
func schemaReason(verr *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
