package verifier

import "testing"

func TestParseAnswer(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		ok     bool
		match  bool
		reason string
	}{
		{name: "match", raw: `{"match": true, "reason": "检测到多人聚集"}`, ok: true, match: true, reason: "检测到多人聚集"},
		{name: "no match", raw: `{"match": false, "reason": "画面空旷"}`, ok: true, reason: "画面空旷"},
		{name: "empty reason", raw: `{"match": false, "reason": ""}`, ok: true},
		{name: "surrounding whitespace", raw: "\n {\"reason\":\"r\",\"match\":true} \n", ok: true, match: true, reason: "r"},
		{name: "string match", raw: `{"match": "yes", "reason": "r"}`},
		{name: "numeric match", raw: `{"match": 1, "reason": "r"}`},
		{name: "numeric reason", raw: `{"match": true, "reason": 3}`},
		{name: "missing reason", raw: `{"match": true}`},
		{name: "missing match", raw: `{"reason": "r"}`},
		{name: "null match", raw: `{"match": null, "reason": "r"}`},
		{name: "upper-case keys", raw: `{"MATCH": true, "Reason": "x"}`},
		{name: "mixed-case key", raw: `{"match": true, "Reason": "x"}`},
		{name: "duplicate key", raw: `{"match": false, "match": true, "reason": "x"}`},
		{name: "duplicate reason", raw: `{"match": true, "reason": "a", "reason": "b"}`},
		{name: "unterminated", raw: `{"match": true, "reason": "r"`},
		{name: "extra key", raw: `{"match": true, "reason": "r", "confidence": 0.9}`},
		{name: "trailing data", raw: `{"match": true, "reason": "r"} {}`},
		{name: "prose", raw: `The image shows a crowd.`},
		{name: "null", raw: `null`},
		{name: "array", raw: `[true, "r"]`},
		{name: "empty", raw: ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAnswer(tc.raw)
			if !tc.ok {
				if !IsInvalidModelOutput(err) {
					t.Fatalf("expected invalid model output, got %+v, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Match != tc.match || got.Reason != tc.reason {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestAnswerSchema(t *testing.T) {
	if answerSchema.Name != "verification_result" {
		t.Fatalf("name=%q", answerSchema.Name)
	}
	if answerSchema.Definition["additionalProperties"] != false {
		t.Fatalf("schema must be closed: %v", answerSchema.Definition)
	}
}
