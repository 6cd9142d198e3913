package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/adithya-ss/speech-to-text-app/internal/output"
	"github.com/adithya-ss/speech-to-text-app/internal/transcribe"
)

// step scripts the recognizer's answer to one Accept call.
type step struct {
	done bool
	text string
}

// fakeRecognizer replays a script. Accept calls past the end of the script
// report no utterance boundary.
type fakeRecognizer struct {
	mu        sync.Mutex
	script    []step
	final     string
	acceptErr error

	accepts  int
	accepted int // bytes
	results  int
	finals   int
	closed   bool
	pending  string
}

func (f *fakeRecognizer) Accept(pcm []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptErr != nil {
		return false, f.acceptErr
	}
	i := f.accepts
	f.accepts++
	f.accepted += len(pcm)
	if i >= len(f.script) {
		return false, nil
	}
	f.pending = f.script[i].text
	return f.script[i].done, nil
}

func (f *fakeRecognizer) Result() (transcribe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results++
	return transcribe.Result{Text: f.pending}, nil
}

func (f *fakeRecognizer) FinalResult() (transcribe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals++
	return transcribe.Result{Text: f.final}, nil
}

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRecognizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepts + f.results + f.finals
}

// fakeModel hands out a single recognizer and records the requested rate.
type fakeModel struct {
	rec        *fakeRecognizer
	created    int
	sampleRate float64
	err        error
}

func (m *fakeModel) NewRecognizer(sampleRate float64) (transcribe.Recognizer, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created++
	m.sampleRate = sampleRate
	return m.rec, nil
}

func (m *fakeModel) Close() error { return nil }

// captureSink records transcripts.
type captureSink struct {
	mu  sync.Mutex
	got []output.Transcript
	err error
}

func (s *captureSink) Emit(_ context.Context, t output.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, t)
	return s.err
}

func (s *captureSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, t := range s.got {
		out[i] = string(t.Kind) + ":" + t.Text
	}
	return out
}

var errBoom = errors.New("boom")

// writeWAV writes a PCM WAV file with the go-audio encoder.
func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels, n int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, n),
		SourceBitDepth: bitDepth,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 200) - 100
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}
