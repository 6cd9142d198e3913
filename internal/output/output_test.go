package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func TestPrinterFormats(t *testing.T) {
	tests := []struct {
		kind Kind
		text string
		want string
	}{
		{KindUtterance, "hello there", "hello there\n"},
		{KindFinal, "goodbye", "Final Transcription: goodbye\n"},
		{KindFile, "", "Transcription: \n"},
		{KindFile, "one two", "Transcription: one two\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.text, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			if err := p.Emit(context.Background(), Transcript{Kind: tt.kind, Text: tt.text}); err != nil {
				t.Fatalf("Emit() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("printed %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

type recordingSink struct {
	got []Transcript
	err error
}

func (r *recordingSink) Emit(_ context.Context, t Transcript) error {
	r.got = append(r.got, t)
	return r.err
}

func TestMultiFansOut(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{}
	b := &recordingSink{err: boom}
	c := &recordingSink{}

	err := Multi{a, b, c}.Emit(context.Background(), Transcript{Text: "hi"})
	if !errors.Is(err, boom) {
		t.Errorf("Emit() error = %v, want boom", err)
	}
	for i, s := range []*recordingSink{a, b, c} {
		if len(s.got) != 1 {
			t.Errorf("sink %d received %d transcripts, want 1", i, len(s.got))
		}
	}
}

func TestMultiEmpty(t *testing.T) {
	if err := (Multi{}).Emit(context.Background(), Transcript{}); err != nil {
		t.Errorf("Emit() error = %v", err)
	}
}

// natsURL returns a NATS server to publish against, skipping when none is configured.
func natsURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("STT_TEST_NATS_URL")
	if url == "" {
		t.Skip("STT_TEST_NATS_URL not set")
	}
	return url
}

func TestNATSPublisherPublishes(t *testing.T) {
	url := natsURL(t)

	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	sub, err := conn.SubscribeSync("stt-test.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatal(err)
	}

	pubConn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	p := NewNATSPublisher(pubConn, "stt-test", zap.NewNop())
	defer p.Close()

	want := Transcript{SessionID: "s1", Mode: "realtime", Kind: KindUtterance, Text: "lights on", Timestamp: time.Now().UTC()}
	if err := p.Emit(context.Background(), Transcript{Kind: KindUtterance}); err != nil {
		t.Fatalf("Emit(empty) error = %v", err)
	}
	if err := p.Emit(context.Background(), want); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if msg.Subject != "stt-test.utterance" {
		t.Errorf("subject = %q, want stt-test.utterance", msg.Subject)
	}
	var got Transcript
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != want.Text || got.SessionID != want.SessionID {
		t.Errorf("received %+v, want %+v", got, want)
	}
}
