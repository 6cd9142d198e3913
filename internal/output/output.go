// Package output delivers transcripts to the terminal and, optionally, to NATS.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind distinguishes the transcripts a session produces.
type Kind string

const (
	// KindUtterance is a completed utterance in realtime mode.
	KindUtterance Kind = "utterance"
	// KindFinal is the flushed result when realtime mode stops.
	KindFinal Kind = "final"
	// KindFile is the single result of transcribing a file.
	KindFile Kind = "file"
)

// Transcript is one piece of recognized text.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Kind      Kind      `json:"kind"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives transcripts.
type Sink interface {
	Emit(ctx context.Context, t Transcript) error
}

// Printer writes transcripts as plain lines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Emit prints an utterance as-is and labels final and file results.
func (p *Printer) Emit(_ context.Context, t Transcript) error {
	var line string
	switch t.Kind {
	case KindFinal:
		line = "Final Transcription: " + t.Text
	case KindFile:
		line = "Transcription: " + t.Text
	default:
		line = t.Text
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintln(p.w, line); err != nil {
		return fmt.Errorf("output: print transcript: %w", err)
	}
	return nil
}

// Multi fans a transcript out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, t Transcript) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
