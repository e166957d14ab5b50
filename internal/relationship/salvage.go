package relationship

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ExtractJSONArray recovers a JSON array from free-form oracle text. It
// first strips markdown code fences, then, if the remainder still does not
// parse, falls back to the outermost "[...]" span.
func ExtractJSONArray(text string) (json.RawMessage, error) {
	cleaned := stripCodeFences(strings.TrimSpace(text))

	if raw, ok := tryArray(cleaned); ok {
		return raw, nil
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start >= 0 && end > start {
		if raw, ok := tryArray(cleaned[start : end+1]); ok {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no JSON array in oracle response")
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Language tag on the opening fence, e.g. ```json
	if nl := strings.Index(s, "\n"); nl >= 0 {
		firstLine := strings.TrimSpace(s[:nl])
		if len(firstLine) <= 10 && !strings.Contains(firstLine, "[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func tryArray(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var probe []json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}
