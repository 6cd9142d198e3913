package audio

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// CaptureOptions configure a capture stream.
type CaptureOptions struct {
	// BlockFrames is the chunk size handed to the consumer. Defaults to BlockFrames.
	BlockFrames int
	// OnStatus receives non-fatal stream conditions. May be nil.
	OnStatus func(Status)
	// OnStop is called once if the device stops before Close. May be nil.
	OnStop func()
}

// Capture streams PCM chunks from a live device. The data callback runs on
// the audio thread and only ever does a non-blocking send on the chunk
// channel; when the consumer lags, blocks are dropped and reported as
// StatusInputOverflow.
type Capture struct {
	device *malgo.Device
	opts   CaptureOptions
	chunks chan<- Chunk

	mu      sync.Mutex
	pending []byte

	closing  atomic.Bool
	stopOnce sync.Once
}

func newCapture(opts CaptureOptions, chunks chan<- Chunk) *Capture {
	return &Capture{
		opts:    opts,
		chunks:  chunks,
		pending: make([]byte, 0, opts.BlockFrames*BytesPerSample*Channels),
	}
}

// Close stops the device. The chunk channel is left open; it belongs to the caller.
func (c *Capture) Close() {
	c.closing.Store(true)
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
}

// onData is the malgo callback invoked when audio data is available.
// pInput holds frameCount frames of interleaved s16le samples.
func (c *Capture) onData(_, pInput []byte, frameCount uint32) {
	if frameCount == 0 {
		c.report(StatusInputUnderflow)
		return
	}
	n := int(frameCount) * BytesPerSample * Channels
	if n > len(pInput) {
		n = len(pInput)
	}
	c.push(pInput[:n])
}

// push appends raw bytes and emits every complete block.
func (c *Capture) push(data []byte) {
	blockBytes := c.opts.BlockFrames * BytesPerSample * Channels

	c.mu.Lock()
	c.pending = append(c.pending, data...)
	var ready []Chunk
	for len(c.pending) >= blockBytes {
		block := make(Chunk, blockBytes)
		copy(block, c.pending[:blockBytes])
		ready = append(ready, block)
		c.pending = append(c.pending[:0], c.pending[blockBytes:]...)
	}
	c.mu.Unlock()

	for _, block := range ready {
		select {
		case c.chunks <- block:
		default:
			c.report(StatusInputOverflow)
		}
	}
}

func (c *Capture) onStop() {
	if c.closing.Load() {
		return
	}
	c.stopOnce.Do(func() {
		c.report(StatusDeviceStopped)
		if c.opts.OnStop != nil {
			c.opts.OnStop()
		}
	})
}

func (c *Capture) report(s Status) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}
