package verifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"vlmcheck/internal/vlm"
	"vlmcheck/pkg/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// answerSchema is the response_format sent with every model call.
var answerSchema = mustSchema(vlm.SchemaFor(
	"verification_result",
	"Whether the image shows the described situation, with a reason",
	&types.ModelAnswer{},
))

func mustSchema(s *vlm.Schema, err error) *vlm.Schema {
	if err != nil {
		panic(err)
	}
	return s
}

// wireAnswer distinguishes missing keys from zero values.
type wireAnswer struct {
	Match  *bool   `json:"match" validate:"required"`
	Reason *string `json:"reason" validate:"required"`
}

// ParseAnswer strictly decodes raw model output: a single JSON object with
// exactly a boolean match and a string reason.
func ParseAnswer(raw string) (types.ModelAnswer, error) {
	w, err := decodeAnswer(raw)
	if err == nil {
		err = validate.Struct(w)
	}
	if err != nil {
		return types.ModelAnswer{}, &InvalidOutputError{Raw: raw, Err: err}
	}
	return types.ModelAnswer{Match: *w.Match, Reason: *w.Reason}, nil
}

// decodeAnswer walks the object key by key. Keys match case-sensitively and
// each may appear once; encoding/json on its own folds case and lets a
// repeated key overwrite the first.
func decodeAnswer(raw string) (wireAnswer, error) {
	var w wireAnswer
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return w, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return w, errors.New("answer is not a JSON object")
	}

	seen := make(map[string]bool, 2)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return w, err
		}
		key, _ := tok.(string)
		if seen[key] {
			return w, fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return w, err
		}
		switch key {
		case "match":
			err = json.Unmarshal(val, &w.Match)
		case "reason":
			err = json.Unmarshal(val, &w.Reason)
		default:
			err = fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return w, err
		}
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return w, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return w, errors.New("trailing data after JSON object")
	}
	return w, nil
}
