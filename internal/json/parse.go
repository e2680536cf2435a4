// Package json parses structured data out of LLM responses.
//
// Models often wrap JSON in a markdown code fence or surround it with
// commentary. ParseStructured accepts the bare document or the first fenced
// block and nothing else.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PreviewLimit bounds the response preview carried by MalformedResponseError,
// counted in characters.
const PreviewLimit = 500

// ErrMalformedResponse matches every *MalformedResponseError.
var ErrMalformedResponse = errors.New("malformed structured response")

// MalformedResponseError reports a response that is not valid JSON either
// raw or inside its first code fence.
type MalformedResponseError struct {
	Err     error  // parse error of the last attempt
	Preview string // leading part of the text that was parsed
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("failed to parse JSON from AI response: %v\nresponse content:\n%s", e.Err, e.Preview)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedResponse) match.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// ParseStructured parses text as JSON. When the trimmed text is not valid
// JSON, the content of the first ```json fence (or, lacking one, the first
// ``` fence) is parsed instead. An unterminated fence runs to the end of text.
func ParseStructured(text string) (any, error) {
	var v any
	if err := unmarshal(text, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseInto is ParseStructured decoding into T.
func ParseInto[T any](text string) (T, error) {
	var v T
	err := unmarshal(text, &v)
	return v, err
}

func unmarshal(text string, v any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	if block, ok := fencedBlock(text); ok {
		text = block
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &MalformedResponseError{Err: err, Preview: preview(text)}
	}
	return nil
}

// fencedBlock returns the trimmed content of the first code fence, preferring
// a ```json fence anywhere in text over a plain one.
func fencedBlock(text string) (string, bool) {
	var start int
	if i := strings.Index(text, "```json"); i != -1 {
		start = i + len("```json")
	} else if i := strings.Index(text, "```"); i != -1 {
		start = i + len("```")
	} else {
		return "", false
	}

	rest := text[start:]
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// preview cuts text to its first PreviewLimit characters.
func preview(text string) string {
	n := 0
	for i := range text {
		if n == PreviewLimit {
			return text[:i]
		}
		n++
	}
	return text
}
