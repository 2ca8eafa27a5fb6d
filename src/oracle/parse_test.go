package oracle

import (
	"testing"

	"github.com/stake-plus/hermes/src/types"
)

func TestExtractJSONShapes(t *testing.T) {
	cases := map[string]string{
		"bare":     `{"similar":[2]}`,
		"fenced":   "Here you go:\n```json\n{\"similar\":[2]}\n```\nThanks.",
		"untagged": "```\n{\"similar\":[2]}\n```",
		"prose":    `Sure! {not json} The answer is {"similar":[2], "note":"a } brace"} and more.`,
		"escaped":  `prefix {"note":"quote \" and {brace", "similar":[2]} suffix`,
		"unclosed": `Quick note {the claim is partly false. Final answer: {"similar":[2], "confidence": 0.9}`,
	}
	for name, reply := range cases {
		var out struct {
			Similar []int `json:"similar"`
		}
		if err := ExtractJSON(reply, &out); err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(out.Similar) != 1 || out.Similar[0] != 2 {
			t.Errorf("%s: got %v", name, out.Similar)
		}
	}

	var v map[string]interface{}
	for _, bad := range []string{"", "no braces here", "{unterminated", "```json\n```"} {
		if err := ExtractJSON(bad, &v); err != ErrNoJSON {
			t.Errorf("ExtractJSON(%q) = %v, want ErrNoJSON", bad, err)
		}
	}
}

func TestParseBraceScanIgnoresBracesInStrings(t *testing.T) {
	got, ok := ParseBraceScan(`x {"a":"}{"} y`)
	if !ok || got != `{"a":"}{"}` {
		t.Fatalf("ParseBraceScan = %q, %v", got, ok)
	}
}

func TestParseBraceScanSkipsUnclosedBrace(t *testing.T) {
	reply := `Quick note {the claim is partly false. Final answer: {"is_misinformation": true, "confidence": 0.9, "category": "health"}`
	var raw rawVerdict
	if err := ExtractJSON(reply, &raw); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if v := raw.normalize(); !v.IsMisinformation || v.Confidence != 0.9 || v.Category != types.CategoryHealth {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestNormalizeConfidence(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
	}{
		{1.7, 1},
		{-0.2, 0},
		{0.42, 0.42},
		{0.0, 0},
		{"0.8", 0.8},
		{"high", 0.5},
		{nil, 0.5},
		{true, 0.5},
	}
	for _, c := range cases {
		if got := NormalizeConfidence(c.in); got != c.want {
			t.Errorf("NormalizeConfidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestVerdictNormalization(t *testing.T) {
	var raw rawVerdict
	if err := ExtractJSON(`{"is_misinformation":"TRUE","confidence":3,"category":"Astrology"}`, &raw); err != nil {
		t.Fatal(err)
	}
	v := raw.normalize()
	if !v.IsMisinformation || v.Confidence != 1 || v.Category != types.CategoryGeneral || v.Explanation != "Analysis completed" {
		t.Fatalf("verdict = %+v", v)
	}

	raw = rawVerdict{}
	if err := ExtractJSON(`{"is_misinformation":0,"confidence":0.3,"category":"health","explanation":" ok "}`, &raw); err != nil {
		t.Fatal(err)
	}
	v = raw.normalize()
	if v.IsMisinformation || v.Confidence != 0.3 || v.Category != types.CategoryHealth || v.Explanation != "ok" {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestModerationDecision(t *testing.T) {
	cases := []struct {
		raw       rawModeration
		valid     bool
		ct        types.ContentType
		hasReason bool
	}{
		{rawModeration{ContentType: "news"}, true, types.ContentNews, false},
		{rawModeration{ContentType: "Personal Attack", IsValid: true}, false, types.ContentPersonalAttack, true},
		{rawModeration{ContentType: "poetry"}, true, types.ContentUnknown, false},
		{rawModeration{ContentType: "poetry", IsValid: false, Reason: "not a claim"}, false, types.ContentUnknown, true},
	}
	for _, c := range cases {
		d := c.raw.decision()
		if d.IsValid != c.valid || d.ContentType != c.ct || (d.RejectionReason != nil) != c.hasReason {
			t.Errorf("decision(%+v) = %+v", c.raw, d)
		}
	}
}
