package vlm

import (
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Part is one piece of a multimodal message: either text or an image URL
// (typically a data URI).
type Part struct {
	Text     string
	ImageURL string
}

// TextPart returns a text part.
func TextPart(s string) Part { return Part{Text: s} }

// ImagePart returns an image part referencing url.
func ImagePart(url string) Part { return Part{ImageURL: url} }

// Message is a chat message made of parts. An empty Role means user.
type Message struct {
	Role  string
	Parts []Part
}

// Schema is a named JSON schema the reply should conform to.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// CompletionRequest is the input of Client.Complete.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Schema      *Schema
	Temperature float64
	MaxTokens   int
}

// guidedJSONField is the vLLM extension carrying a schema for guided decoding.
const guidedJSONField = "guided_json"

// chatParams translates req into SDK parameters plus per-request options.
func chatParams(req CompletionRequest) (openai.ChatCompletionNewParams, []option.RequestOption) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			var b strings.Builder
			for _, p := range m.Parts {
				b.WriteString(p.Text)
			}
			msgs = append(msgs, openai.SystemMessage(b.String()))
			continue
		}
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.ImageURL != "" {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL}))
				continue
			}
			parts = append(parts, openai.TextContentPart(p.Text))
		}
		msgs = append(msgs, openai.UserMessage(parts))
	}

	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var opts []option.RequestOption
	if req.Schema != nil {
		js := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   req.Schema.Name,
			Schema: req.Schema.Definition,
			Strict: openai.Bool(true),
		}
		if req.Schema.Description != "" {
			js.Description = openai.String(req.Schema.Description)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: js},
		}
		opts = append(opts, option.WithJSONSet(guidedJSONField, req.Schema.Definition))
	}
	return params, opts
}
