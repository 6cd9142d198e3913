package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adithya-ss/speech-to-text-app/internal/audio"
	"github.com/adithya-ss/speech-to-text-app/internal/metrics"
	"github.com/adithya-ss/speech-to-text-app/internal/output"
	"github.com/adithya-ss/speech-to-text-app/internal/transcribe"
)

// DefaultPollInterval bounds a single wait for audio.
const DefaultPollInterval = time.Second

// Realtime feeds live chunks to a recognizer and emits each newly completed
// utterance, skipping one that repeats the previously emitted text.
type Realtime struct {
	Recognizer   transcribe.Recognizer
	Sink         output.Sink
	Log          *zap.Logger
	Metrics      *metrics.Recorder
	Session      Session
	PollInterval time.Duration
}

// Run consumes chunks until ctx is done. If ctx was cancelled plainly (an
// interrupt), the in-progress utterance is flushed as a final transcript and
// Run returns nil. Any other cancellation cause, a recognizer error, or a
// closed channel ends the loop with an error.
func (r *Realtime) Run(ctx context.Context, chunks <-chan audio.Chunk) error {
	poll := r.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	em := &emitter{session: r.Session, mode: ModeRealtime, sink: r.Sink, log: r.Log, metrics: r.Metrics}

	var last string
	for {
		select {
		case <-ctx.Done():
			return r.stop(ctx, em)

		case chunk, ok := <-chunks:
			if !ok {
				return ErrSourceClosed
			}
			if err := r.feed(ctx, em, chunk, &last); err != nil {
				return err
			}

		case <-time.After(poll):
			// Nothing arrived; wait again.
		}
	}
}

func (r *Realtime) feed(ctx context.Context, em *emitter, chunk audio.Chunk, last *string) error {
	r.Metrics.ChunkFed(ModeRealtime, len(chunk))

	done, err := r.Recognizer.Accept(chunk)
	if err != nil {
		return fmt.Errorf("pipeline: accept audio: %w", err)
	}
	if !done {
		return nil
	}

	res, err := r.Recognizer.Result()
	if err != nil {
		return fmt.Errorf("pipeline: read result: %w", err)
	}
	if res.Text == "" {
		return nil
	}
	if res.Text == *last {
		r.Metrics.DuplicateSuppressed()
		r.Log.Debug("skipping repeated result", zap.String("text", res.Text))
		return nil
	}

	em.emit(ctx, output.KindUtterance, res.Text)
	*last = res.Text
	return nil
}

func (r *Realtime) stop(ctx context.Context, em *emitter) error {
	cause := context.Cause(ctx)
	if !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("pipeline: realtime transcription aborted: %w", cause)
	}

	r.Log.Info("stopping transcription")
	res, err := r.Recognizer.FinalResult()
	if err != nil {
		return fmt.Errorf("pipeline: final result: %w", err)
	}
	em.emit(ctx, output.KindFinal, res.Text)
	return nil
}
