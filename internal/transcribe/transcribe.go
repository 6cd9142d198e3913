// Package transcribe defines the streaming recognizer used by the
// transcription loops and implements it on top of Vosk.
package transcribe

import (
	"encoding/json"
	"fmt"
)

// Result is a recognizer output.
type Result struct {
	Text    string
	Partial bool
}

// Recognizer consumes 16-bit mono PCM and reports utterance boundaries.
// Implementations are not safe for concurrent use.
type Recognizer interface {
	// Accept feeds pcm and reports whether it completed an utterance.
	Accept(pcm []byte) (bool, error)
	// Result returns the text of the utterance completed by the last Accept.
	Result() (Result, error)
	// FinalResult flushes any in-progress utterance and returns its text.
	FinalResult() (Result, error)
	// Close releases the recognizer.
	Close() error
}

// Model is a loaded acoustic/language model that recognizers are built from.
type Model interface {
	NewRecognizer(sampleRate float64) (Recognizer, error)
	Close() error
}

// ModelLoader loads a model from a directory.
type ModelLoader func(path string) (Model, error)

// voskResult mirrors the JSON documents returned by Vosk.
type voskResult struct {
	Text    *string `json:"text"`
	Partial *string `json:"partial"`
}

// ParseResult decodes a Vosk result document. Final results carry "text",
// partial ones "partial"; a document with neither is an empty final result.
func ParseResult(raw string) (Result, error) {
	var r voskResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, fmt.Errorf("transcribe: decode result %q: %w", raw, err)
	}
	switch {
	case r.Text != nil:
		return Result{Text: *r.Text}, nil
	case r.Partial != nil:
		return Result{Text: *r.Partial, Partial: true}, nil
	default:
		return Result{}, nil
	}
}
