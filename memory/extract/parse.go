package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	jsonFenceRe     = regexp.MustCompile("```json\\s*")
	fenceRe         = regexp.MustCompile("```\\s*")
	trailingBraceRe = regexp.MustCompile(`,\s*}`)
	trailingBrackRe = regexp.MustCompile(`,\s*]`)
)

// Parse turns a raw model reply into an Extraction. It tolerates markdown
// code fences, prose around the JSON object and trailing commas.
func Parse(text string) (Extraction, error) {
	v, err := decodeObject(text)
	if err != nil {
		return Extraction{}, err
	}
	return fromValue(v)
}

// decodeObject decodes the span between the first '{' and the last '}'.
// A failed strict decode gets exactly one retry with trailing commas removed.
func decodeObject(text string) (any, error) {
	text = jsonFenceRe.ReplaceAllString(text, "")
	text = fenceRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end <= start {
		return nil, ErrNoJSON
	}
	payload := text[start : end+1]

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err == nil {
		return v, nil
	}

	repaired := trailingBraceRe.ReplaceAllString(payload, "}")
	repaired = trailingBrackRe.ReplaceAllString(repaired, "]")

	var fixed any
	if err := json.Unmarshal([]byte(repaired), &fixed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fixed, nil
}

func fromValue(v any) (Extraction, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Extraction{}, fmt.Errorf("%w: top level is %T, not an object", ErrMalformed, v)
	}

	importance := 0.0
	if raw, ok := obj["importance"]; ok {
		f, ok := toFloat(raw)
		if !ok {
			return Extraction{}, fmt.Errorf("%w: importance %v is not a number", ErrMalformed, raw)
		}
		importance = math.Min(1, math.Max(0, f))
	}

	memories := []Memory{}
	if raw, ok := obj["memories"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return Extraction{}, fmt.Errorf("%w: memories is %T, not a list", ErrMalformed, raw)
		}
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			summary, ok := entry["summary"]
			if !ok {
				continue
			}
			memories = append(memories, Memory{
				Summary: toString(summary),
				Tags:    toStrings(entry["tags"]),
				Source:  toString(entry["source"]),
			})
		}
	}

	return Extraction{Importance: importance, Memories: memories}, nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case bool:
		if t {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, toString(item))
		}
		return out
	default:
		return nil
	}
}
