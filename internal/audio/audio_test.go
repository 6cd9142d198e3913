package audio

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{0, "ok"},
		{StatusInputOverflow, "input overflow"},
		{StatusInputUnderflow | StatusDeviceStopped, "input underflow, device stopped"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusLoggerSilencesOverflow(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	overflows := 0
	handle := StatusLogger(zap.New(core), func() { overflows++ })

	handle(StatusInputOverflow)
	handle(StatusInputOverflow)

	if overflows != 2 {
		t.Errorf("overflow counted %d times, want 2", overflows)
	}
	if logs.Len() != 0 {
		t.Errorf("overflow produced log output: %v", logs.All())
	}
}

func TestStatusLoggerReportsOtherStatuses(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handle := StatusLogger(zap.New(core), nil)

	handle(StatusInputUnderflow | StatusInputOverflow)

	entries := logs.FilterMessage("audio stream status").All()
	if len(entries) != 1 {
		t.Fatalf("got %d status log lines, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != "input underflow" {
		t.Errorf("logged status = %v, want %q", got, "input underflow")
	}
}
