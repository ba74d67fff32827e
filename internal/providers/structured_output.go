package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxStructuredRepairAttempts limits self-repair rounds when the model's
// structured output fails to parse or validate.
const maxStructuredRepairAttempts = 2

// schemaWrapper is the OpenAI response_format.json_schema object.
type schemaWrapper struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// unwrapSchema splits a response-format schema into its wrapper fields.
// A bare schema document (no "schema" key) is accepted as-is.
func unwrapSchema(raw json.RawMessage) (schemaWrapper, error) {
	var w schemaWrapper
	if len(raw) == 0 {
		return w, nil
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return w, fmt.Errorf("invalid structured schema JSON: %w", err)
	}
	if len(w.Schema) == 0 {
		w.Schema = raw
	}
	if w.Name == "" {
		w.Name = "response"
	}
	return w, nil
}

// parseStructuredJSON parses JSON from model output, tolerating markdown code
// fences and surrounding prose.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty output", ErrStructuredOutput)
	}

	for _, candidate := range []string{content, stripCodeFences(content), extractJSONCandidate(content)} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		normalized, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize structured output: %w", err)
		}
		return normalized, nil
	}
	return nil, fmt.Errorf("%w: output is not JSON", ErrStructuredOutput)
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// extractJSONCandidate returns the outermost {...} or [...] in content,
// whichever opens first.
func extractJSONCandidate(content string) string {
	obj := strings.Index(content, "{")
	arr := strings.Index(content, "[")

	start, closer := obj, "}"
	if obj < 0 || (arr >= 0 && arr < obj) {
		start, closer = arr, "]"
	}
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(content, closer)
	if end < start {
		return ""
	}
	return content[start : end+1]
}

// validateStructuredJSON validates parsed output against the schema.
func validateStructuredJSON(schemaRaw json.RawMessage, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaRaw)); err != nil {
		return fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile structured schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStructuredOutput, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStructuredOutput, err)
	}
	return nil
}

func structuredRepairPrompt(schemaRaw json.RawMessage, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%v`, string(schemaRaw), lastOutput, issue)
}
