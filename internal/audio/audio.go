// Package audio produces 16kHz mono signed 16-bit PCM chunks, either from a
// live capture device via malgo or from a WAV file via go-audio.
package audio

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2

	// BlockFrames is the realtime capture block, 0.5s at SampleRate.
	BlockFrames = 8000
	// FileChunkFrames is the read size used when streaming a WAV file.
	FileChunkFrames = 4000
)

var (
	ErrFileNotFound           = errors.New("audio file not found")
	ErrUnsupportedAudioFormat = errors.New("audio file must be WAV format mono 16-bit PCM")
	ErrNoInputDevice          = errors.New("no audio input device available")
	ErrDeviceStopped          = errors.New("audio input device stopped")
)

// Chunk is a block of little-endian signed 16-bit mono samples. Consumers
// must not modify it.
type Chunk []byte

// Frames returns the number of sample frames in the chunk.
func (c Chunk) Frames() int {
	return len(c) / (BytesPerSample * Channels)
}

// Status flags a condition reported by a capture stream.
type Status uint8

const (
	StatusInputOverflow Status = 1 << iota
	StatusInputUnderflow
	StatusDeviceStopped
)

// Has reports whether all bits of f are set in s.
func (s Status) Has(f Status) bool {
	return s&f == f
}

func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	if s.Has(StatusInputOverflow) {
		parts = append(parts, "input overflow")
	}
	if s.Has(StatusInputUnderflow) {
		parts = append(parts, "input underflow")
	}
	if s.Has(StatusDeviceStopped) {
		parts = append(parts, "device stopped")
	}
	return strings.Join(parts, ", ")
}

// StatusLogger returns a status handler that logs everything except input
// overflow at warn level. Overflow is expected when the consumer lags and is
// only counted through onOverflow, which may be nil.
func StatusLogger(log *zap.Logger, onOverflow func()) func(Status) {
	return func(s Status) {
		if s.Has(StatusInputOverflow) {
			if onOverflow != nil {
				onOverflow()
			}
			s &^= StatusInputOverflow
		}
		if s != 0 {
			log.Warn("audio stream status", zap.Stringer("status", s))
		}
	}
}
