package oracle

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/stake-plus/hermes/src/types"
)

// ErrNoJSON is returned when a reply contains no decodable JSON object.
var ErrNoJSON = errors.New("oracle: no JSON object in reply")

const defaultExplanation = "Analysis completed"

// ExtractJSON decodes the first JSON object found in a model reply into v.
// It tries the whole body, then a fenced code block, then the first balanced
// brace region.
func ExtractJSON(reply string, v interface{}) error {
	for _, parse := range []func(string) (string, bool){ParseDirect, ParseFenced, ParseBraceScan} {
		raw, ok := parse(reply)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}

// ParseDirect accepts a reply that is a JSON object and nothing else.
func ParseDirect(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		return "", false
	}
	return s, true
}

// ParseFenced returns the body of the first ``` code block, with an optional
// language tag dropped.
func ParseFenced(reply string) (string, bool) {
	start := strings.Index(reply, "```")
	if start < 0 {
		return "", false
	}
	rest := reply[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	body := rest[:end]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{[\"") {
			body = body[nl+1:]
		}
	}
	return ParseDirect(body)
}

// ParseBraceScan returns the first balanced {...} region that is valid JSON.
// Braces inside string literals are ignored.
func ParseBraceScan(reply string) (string, bool) {
	for i := 0; i < len(reply); i++ {
		if reply[i] != '{' {
			continue
		}
		end := matchBrace(reply, i)
		if end < 0 {
			// an unclosed brace in prose; a later one may still open the object
			continue
		}
		if candidate := reply[i : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// rawVerdict keeps every field loosely typed; models are not consistent
// about emitting booleans and numbers.
type rawVerdict struct {
	IsMisinformation interface{} `json:"is_misinformation"`
	Confidence       interface{} `json:"confidence"`
	Category         interface{} `json:"category"`
	Explanation      interface{} `json:"explanation"`
}

func (r rawVerdict) normalize() types.Verdict {
	explanation := strings.TrimSpace(asString(r.Explanation))
	if explanation == "" {
		explanation = defaultExplanation
	}
	return types.Verdict{
		IsMisinformation: truthy(r.IsMisinformation),
		Confidence:       NormalizeConfidence(r.Confidence),
		Category:         types.ParseCategory(asString(r.Category)),
		Explanation:      explanation,
	}
}

// NormalizeConfidence clamps numeric values to [0,1]. Anything that is not a
// number, or a string holding one, becomes 0.5.
func NormalizeConfidence(v interface{}) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0.5
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0.5
		}
		f = parsed
	default:
		return 0.5
	}
	if f != f {
		return 0.5
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

type rawModeration struct {
	ContentType string      `json:"content_type"`
	IsValid     interface{} `json:"is_valid"`
	Reason      string      `json:"reason"`
}

func (r rawModeration) decision() types.ContentDecision {
	ct := types.ParseContentType(r.ContentType)
	if ct.Allowed() {
		return types.ContentDecision{IsValid: true, ContentType: ct}
	}
	if reason := ct.RejectionReason(); reason != "" {
		return types.ContentDecision{IsValid: false, ContentType: ct, RejectionReason: &reason}
	}
	// Unrecognised label: trust the model's own flag, defaulting to valid.
	if r.IsValid == nil || truthy(r.IsValid) {
		return types.ContentDecision{IsValid: true, ContentType: types.ContentUnknown}
	}
	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		reason = "Only news and factual claims can be verified."
	}
	return types.ContentDecision{IsValid: false, ContentType: types.ContentUnknown, RejectionReason: &reason}
}
