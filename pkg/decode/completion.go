package decode

import (
	"github.com/tidwall/gjson"
)

// Shape classifies a decoded completion body.
type Shape int

const (
	// ShapeDegenerate is a parseable body without usable content.
	ShapeDegenerate Shape = iota

	// ShapeRecognized is a body with choices[0].message.content.
	ShapeRecognized
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeRecognized:
		return "recognized"
	default:
		return "degenerate"
	}
}

const (
	choicesPath           = "choices"
	completionContentPath = "choices.0.message.content"
	chunkContentPath      = "choices.0.delta.content"
)

// Result is the outcome of decoding a blocking completion body.
// Text is always empty when Shape is ShapeDegenerate.
type Result struct {
	Shape Shape
	Text  string
}

// Recognized reports whether the body carried message content.
func (r Result) Recognized() bool {
	return r.Shape == ShapeRecognized
}

// Completion decodes a blocking chat-completion body.
//
// It returns a *SyntaxError if body is not valid JSON. Any valid JSON
// decodes without error; bodies missing choices[0].message.content give a
// degenerate Result with empty Text.
func Completion(body []byte) (Result, error) {
	if !gjson.ValidBytes(body) {
		return Result{}, newSyntaxError(body)
	}

	if !gjson.GetBytes(body, choicesPath).IsArray() {
		return Result{Shape: ShapeDegenerate}, nil
	}
	content := gjson.GetBytes(body, completionContentPath)
	if content.Type != gjson.String {
		return Result{Shape: ShapeDegenerate}, nil
	}

	return Result{Shape: ShapeRecognized, Text: content.String()}, nil
}

// chunkContent extracts the delta content from one stream payload.
// ok is false for invalid JSON and for chunks without a content string
// (role-only deltas, finish chunks, null content).
func chunkContent(payload string) (content string, ok bool) {
	if !gjson.Valid(payload) {
		return "", false
	}

	// gjson resolves "0" against object keys too.
	if !gjson.Get(payload, choicesPath).IsArray() {
		return "", false
	}
	delta := gjson.Get(payload, chunkContentPath)
	if delta.Type != gjson.String {
		return "", false
	}

	return delta.String(), true
}
