// Package metrics exposes transcription counters for Prometheus.
//
// All Recorder methods are safe to call on a nil *Recorder, which records
// nothing; commands pass nil when no metrics address is configured.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder holds the counters for one process.
type Recorder struct {
	registry *prometheus.Registry

	chunks      *prometheus.CounterVec
	audioBytes  *prometheus.CounterVec
	transcripts *prometheus.CounterVec
	duplicates  prometheus.Counter
	dropped     prometheus.Counter
	failures    *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stt",
			Name:      "audio_chunks_total",
			Help:      "Audio chunks fed to the recognizer.",
		}, []string{"mode"}),
		audioBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stt",
			Name:      "audio_bytes_total",
			Help:      "PCM bytes fed to the recognizer.",
		}, []string{"mode"}),
		transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stt",
			Name:      "transcripts_total",
			Help:      "Transcripts emitted, by kind.",
		}, []string{"kind"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stt",
			Name:      "duplicate_results_total",
			Help:      "Utterance results suppressed because they repeated the previous one.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stt",
			Name:      "dropped_chunks_total",
			Help:      "Capture blocks dropped because the consumer fell behind.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stt",
			Name:      "failures_total",
			Help:      "Transcription runs that ended in an error, by mode.",
		}, []string{"mode"}),
	}
	r.registry.MustRegister(r.chunks, r.audioBytes, r.transcripts, r.duplicates, r.dropped, r.failures)
	return r
}

// ChunkFed counts one chunk of n PCM bytes handed to the recognizer.
func (r *Recorder) ChunkFed(mode string, n int) {
	if r == nil {
		return
	}
	r.chunks.WithLabelValues(mode).Inc()
	r.audioBytes.WithLabelValues(mode).Add(float64(n))
}

// TranscriptEmitted counts a transcript of the given kind.
func (r *Recorder) TranscriptEmitted(kind string) {
	if r == nil {
		return
	}
	r.transcripts.WithLabelValues(kind).Inc()
}

// DuplicateSuppressed counts a realtime result skipped as a repeat.
func (r *Recorder) DuplicateSuppressed() {
	if r == nil {
		return
	}
	r.duplicates.Inc()
}

// ChunkDropped counts a capture block lost to a full queue.
func (r *Recorder) ChunkDropped() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}

// RunFailed counts a transcription run that ended in an error.
func (r *Recorder) RunFailed(mode string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(mode).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
