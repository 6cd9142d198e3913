package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adithya-ss/speech-to-text-app/internal/audio"
	"github.com/adithya-ss/speech-to-text-app/internal/metrics"
	"github.com/adithya-ss/speech-to-text-app/internal/output"
	"github.com/adithya-ss/speech-to-text-app/internal/transcribe"
)

// File transcribes a WAV file in one pass and emits a single transcript.
type File struct {
	Model       transcribe.Model
	Sink        output.Sink
	Log         *zap.Logger
	Metrics     *metrics.Recorder
	Session     Session
	ChunkFrames int
}

// Run validates path, feeds every chunk to a fresh recognizer, and emits the
// final result. Validation failures (audio.ErrFileNotFound,
// audio.ErrUnsupportedAudioFormat) return before a recognizer is created.
func (f *File) Run(ctx context.Context, path string) (string, error) {
	wave, err := audio.OpenWave(path)
	if err != nil {
		return "", err
	}
	if wave.SampleRate != audio.SampleRate {
		f.Log.Warn("file sample rate differs from capture rate, decoding at file rate",
			zap.Int("sample_rate", wave.SampleRate))
	}

	rec, err := f.Model.NewRecognizer(float64(wave.SampleRate))
	if err != nil {
		return "", err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			f.Log.Warn("close recognizer", zap.Error(err))
		}
	}()

	chunks := 0
	for chunk, err := range wave.Chunks(f.ChunkFrames) {
		if err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("pipeline: file transcription cancelled: %w", err)
		}
		if _, err := rec.Accept(chunk); err != nil {
			return "", fmt.Errorf("pipeline: accept audio: %w", err)
		}
		f.Metrics.ChunkFed(ModeFile, len(chunk))
		chunks++
	}
	f.Log.Debug("file consumed", zap.String("path", path), zap.Int("chunks", chunks))

	res, err := rec.FinalResult()
	if err != nil {
		return "", fmt.Errorf("pipeline: final result: %w", err)
	}

	em := &emitter{session: f.Session, mode: ModeFile, sink: f.Sink, log: f.Log, metrics: f.Metrics}
	em.emit(ctx, output.KindFile, res.Text)
	return res.Text, nil
}
