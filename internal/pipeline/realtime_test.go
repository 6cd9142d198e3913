package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/adithya-ss/speech-to-text-app/internal/audio"
	"github.com/adithya-ss/speech-to-text-app/internal/metrics"
)

// runRealtime starts the loop, sends n chunks, then cancels ctx with cause
// (plain cancel when cause is nil) and returns the loop error.
func runRealtime(t *testing.T, r *Realtime, n int, cause error) error {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	chunks := make(chan audio.Chunk)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, chunks) }()

	for i := 0; i < n; i++ {
		select {
		case chunks <- make(audio.Chunk, 16):
		case err := <-done:
			return err
		}
	}

	if cause == nil {
		cancel(nil)
	} else {
		cancel(cause)
	}

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
		return nil
	}
}

func newRealtime(rec *fakeRecognizer, sink *captureSink) *Realtime {
	return &Realtime{
		Recognizer:   rec,
		Sink:         sink,
		Log:          zap.NewNop(),
		Session:      Session{ID: "test", Language: "en-us"},
		PollInterval: 10 * time.Millisecond,
	}
}

func TestRealtimeDeduplicatesConsecutiveResults(t *testing.T) {
	tests := []struct {
		name   string
		script []step
		want   []string
	}{
		{
			name:   "identical texts print once",
			script: []step{{true, "hello"}, {true, "hello"}},
			want:   []string{"utterance:hello", "final:"},
		},
		{
			name:   "different texts print twice",
			script: []step{{true, "hello"}, {true, "world"}},
			want:   []string{"utterance:hello", "utterance:world", "final:"},
		},
		{
			name:   "repeat after a different text prints again",
			script: []step{{true, "yes"}, {true, "no"}, {true, "yes"}},
			want:   []string{"utterance:yes", "utterance:no", "utterance:yes", "final:"},
		},
		{
			name:   "empty results and incomplete chunks are skipped",
			script: []step{{false, "ignored"}, {true, ""}, {true, "lights on"}, {false, ""}},
			want:   []string{"utterance:lights on", "final:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{script: tt.script}
			sink := &captureSink{}

			if err := runRealtime(t, newRealtime(rec, sink), len(tt.script), nil); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := sink.texts(); !slices.Equal(got, tt.want) {
				t.Errorf("transcripts = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRealtimeInterruptFlushesFinal(t *testing.T) {
	rec := &fakeRecognizer{script: []step{{true, "first"}}, final: "trailing words"}
	sink := &captureSink{}
	r := newRealtime(rec, sink)
	r.Metrics = metrics.New()

	if err := runRealtime(t, r, 3, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"utterance:first", "final:trailing words"}
	if got := sink.texts(); !slices.Equal(got, want) {
		t.Errorf("transcripts = %q, want %q", got, want)
	}
	if rec.finals != 1 {
		t.Errorf("FinalResult called %d times, want 1", rec.finals)
	}
	if rec.accepts != 3 {
		t.Errorf("Accept called %d times, want 3", rec.accepts)
	}
	for _, tr := range sink.got {
		if tr.SessionID != "test" || tr.Mode != ModeRealtime || tr.Language != "en-us" {
			t.Errorf("transcript not stamped with session: %+v", tr)
		}
	}
}

func TestRealtimeDeviceFailureAborts(t *testing.T) {
	rec := &fakeRecognizer{final: "never shown"}
	sink := &captureSink{}

	err := runRealtime(t, newRealtime(rec, sink), 1, audio.ErrDeviceStopped)
	if !errors.Is(err, audio.ErrDeviceStopped) {
		t.Fatalf("Run() error = %v, want ErrDeviceStopped", err)
	}
	if rec.finals != 0 {
		t.Errorf("FinalResult called %d times on failure, want 0", rec.finals)
	}
	if len(sink.got) != 0 {
		t.Errorf("transcripts = %q, want none", sink.texts())
	}
}

func TestRealtimeAcceptError(t *testing.T) {
	rec := &fakeRecognizer{acceptErr: errBoom}

	err := runRealtime(t, newRealtime(rec, &captureSink{}), 1, nil)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want boom", err)
	}
}

func TestRealtimeClosedSource(t *testing.T) {
	rec := &fakeRecognizer{}
	chunks := make(chan audio.Chunk)
	close(chunks)

	err := newRealtime(rec, &captureSink{}).Run(context.Background(), chunks)
	if !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("Run() error = %v, want ErrSourceClosed", err)
	}
}

func TestRealtimeKeepsWaitingAcrossPolls(t *testing.T) {
	rec := &fakeRecognizer{script: []step{{true, "late"}}}
	sink := &captureSink{}
	r := newRealtime(rec, sink)
	r.PollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan audio.Chunk)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, chunks) }()

	time.Sleep(30 * time.Millisecond) // many poll timeouts
	chunks <- make(audio.Chunk, 16)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"utterance:late", "final:"}
	if got := sink.texts(); !slices.Equal(got, want) {
		t.Errorf("transcripts = %q, want %q", got, want)
	}
}

func TestRealtimeSinkErrorDoesNotStopLoop(t *testing.T) {
	rec := &fakeRecognizer{script: []step{{true, "a"}, {true, "b"}}}
	sink := &captureSink{err: errBoom}

	if err := runRealtime(t, newRealtime(rec, sink), 2, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.got) != 3 {
		t.Errorf("sink received %d transcripts, want 3", len(sink.got))
	}
}
