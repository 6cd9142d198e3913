// Package pipeline runs the transcription loops that sit between an audio
// source and a recognizer.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adithya-ss/speech-to-text-app/internal/metrics"
	"github.com/adithya-ss/speech-to-text-app/internal/output"
)

const (
	ModeRealtime = "realtime"
	ModeFile     = "file"
)

// ErrSourceClosed is returned when the audio channel closes under a running loop.
var ErrSourceClosed = errors.New("pipeline: audio source closed")

// Session identifies the transcripts of one run.
type Session struct {
	ID       string
	Language string
}

// emitter stamps and delivers transcripts. Delivery errors are logged and
// never stop a loop.
type emitter struct {
	session Session
	mode    string
	sink    output.Sink
	log     *zap.Logger
	metrics *metrics.Recorder
}

func (e *emitter) emit(ctx context.Context, kind output.Kind, text string) {
	t := output.Transcript{
		SessionID: e.session.ID,
		Mode:      e.mode,
		Kind:      kind,
		Language:  e.session.Language,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	// The loop context may already be cancelled when the final result goes out.
	if err := e.sink.Emit(context.WithoutCancel(ctx), t); err != nil {
		e.log.Warn("failed to deliver transcript", zap.String("kind", string(kind)), zap.Error(err))
	}
	e.metrics.TranscriptEmitted(string(kind))
}
