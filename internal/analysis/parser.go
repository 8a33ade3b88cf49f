package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Findings is the structured judgment returned by the analysis service.
// Every field is optional; unknown fields are ignored.
type Findings struct {
	Summary    *Text      `json:"summary,omitempty"`
	Validation Validation `json:"validation,omitempty"`
	Verdict    *Text      `json:"verdict,omitempty"`
}

// Text is a display string decoded from any JSON value. Strings are kept
// verbatim; other values keep their compact JSON form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

// String returns the text, or "" for a nil pointer.
func (t *Text) String() string {
	if t == nil {
		return ""
	}
	return string(*t)
}

// ValidationItem is one key of the validation mapping. A value that was
// itself an object is kept as Children, one level deep.
type ValidationItem struct {
	Key      string           `json:"key"`
	Value    string           `json:"value,omitempty"`
	Children []ValidationItem `json:"children,omitempty"`
}

// Validation is the validation mapping in document order. A validation value
// that is not an object decodes to an empty Validation.
type Validation []ValidationItem

func (v *Validation) UnmarshalJSON(data []byte) error {
	fields, ok, err := objectFields(data)
	if err != nil {
		return err
	}
	if !ok {
		*v = nil
		return nil
	}

	items := make(Validation, 0, len(fields))
	for _, f := range fields {
		item := ValidationItem{Key: f.key}
		nested, isObject, err := objectFields(f.raw)
		if err != nil {
			return err
		}
		if isObject {
			item.Children = make([]ValidationItem, 0, len(nested))
			for _, n := range nested {
				var t Text
				if err := t.UnmarshalJSON(n.raw); err != nil {
					return err
				}
				item.Children = append(item.Children, ValidationItem{Key: n.key, Value: string(t)})
			}
		} else {
			var t Text
			if err := t.UnmarshalJSON(f.raw); err != nil {
				return err
			}
			item.Value = string(t)
		}
		items = append(items, item)
	}
	*v = items
	return nil
}

type field struct {
	key string
	raw json.RawMessage
}

// objectFields returns the members of a JSON object in document order.
// ok is false when data holds some other JSON value.
func objectFields(data []byte) (fields []field, ok bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}
	if d, isDelim := tok.(json.Delim); !isDelim || d != '{' {
		return nil, false, nil
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, false, err
		}
		key, isString := kt.(string)
		if !isString {
			return nil, false, fmt.Errorf("unexpected object key %v", kt)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false, err
		}
		fields = append(fields, field{key: key, raw: raw})
	}
	return fields, true, nil
}

// Parse classifies a raw analyzer response. It returns a Parsed result when
// the text (optionally fenced, optionally surrounded by prose) holds a JSON
// object, and Raw with the original text otherwise. Valid JSON that is not an
// object is Raw. It never fails.
func Parse(raw string) Result {
	body := stripFences(strings.TrimSpace(raw))
	if f, ok := decodeFindings(body); ok {
		return Parsed(f)
	}
	if !json.Valid([]byte(body)) {
		if obj := outermostObject(body); obj != "" && obj != body {
			if f, ok := decodeFindings(obj); ok {
				return Parsed(f)
			}
		}
	}
	return Raw(raw)
}

func decodeFindings(s string) (Findings, bool) {
	if !strings.HasPrefix(s, "{") {
		return Findings{}, false
	}
	var f Findings
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return Findings{}, false
	}
	return f, true
}

// stripFences removes a surrounding Markdown code fence, if present.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	// Remove first line (```json) and last line (```)
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// outermostObject returns the text between the first '{' and the last '}'.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
