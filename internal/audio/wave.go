package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// WAVE format tags.
const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// subFormatGUIDTail follows the two-byte format tag in every
// KSDATAFORMAT_SUBTYPE_* GUID.
var subFormatGUIDTail = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// Wave is a validated mono 16-bit PCM WAV file.
type Wave struct {
	Path       string
	SampleRate int
}

// OpenWave checks that path exists and holds mono 16-bit uncompressed PCM,
// either as a plain PCM format tag or as WAVE_FORMAT_EXTENSIBLE with a PCM
// sub-format. It returns ErrFileNotFound or ErrUnsupportedAudioFormat
// otherwise. The file is not kept open; Chunks reopens it.
func OpenWave(path string) (*Wave, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedAudioFormat, path)
	}
	format := dec.WavAudioFormat
	if format == wavFormatExtensible {
		sub, err := extensibleSubFormat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedAudioFormat, path, err)
		}
		format = sub
	}
	if format != wavFormatPCM || dec.NumChans != Channels || dec.BitDepth != 8*BytesPerSample {
		return nil, fmt.Errorf("%w: %s has format %d, %d channel(s), %d-bit",
			ErrUnsupportedAudioFormat, path, format, dec.NumChans, dec.BitDepth)
	}

	return &Wave{Path: path, SampleRate: int(dec.SampleRate)}, nil
}

// Chunks returns a lazy sequence of chunks of at most frames frames each,
// ending at the end of the data chunk. Each range over the sequence reopens
// the file, so it can be iterated more than once.
func (w *Wave) Chunks(frames int) iter.Seq2[Chunk, error] {
	if frames <= 0 {
		frames = FileChunkFrames
	}
	return func(yield func(Chunk, error) bool) {
		f, err := os.Open(w.Path)
		if err != nil {
			yield(nil, fmt.Errorf("audio: open %s: %w", w.Path, err))
			return
		}
		defer f.Close()

		dec := wav.NewDecoder(f)
		buf := &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: Channels, SampleRate: w.SampleRate},
			Data:           make([]int, frames*Channels),
			SourceBitDepth: 8 * BytesPerSample,
		}

		for {
			n, err := dec.PCMBuffer(buf)
			if err != nil {
				yield(nil, fmt.Errorf("audio: read %s: %w", w.Path, err))
				return
			}
			if n == 0 {
				return
			}
			if !yield(encodeS16(buf.Data[:n]), nil) {
				return
			}
		}
	}
}

// extensibleSubFormat returns the format tag carried in the sub-format GUID
// of a WAVE_FORMAT_EXTENSIBLE fmt chunk.
func extensibleSubFormat(path string) (uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	p := riff.New(f)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("no fmt chunk: %w", err)
		}
		if ch.ID != riff.FmtID {
			if _, err := io.CopyN(io.Discard, ch.R, int64(ch.Size)); err != nil {
				return 0, err
			}
			continue
		}

		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch.R, body); err != nil {
			return 0, err
		}
		// Common fields (16), cbSize (2), valid bits (2), channel mask (4), GUID (16).
		if len(body) < 40 {
			return 0, errors.New("extensible fmt chunk too short")
		}
		guid := body[24:40]
		if !bytes.Equal(guid[2:], subFormatGUIDTail) {
			return 0, errors.New("unknown sub-format GUID")
		}
		return binary.LittleEndian.Uint16(guid[:2]), nil
	}
}

// encodeS16 packs decoded samples back into little-endian signed 16-bit PCM.
func encodeS16(samples []int) Chunk {
	out := make(Chunk, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(s)))
	}
	return out
}
