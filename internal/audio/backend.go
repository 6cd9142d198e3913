package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Backend owns the malgo context used to enumerate and open capture devices.
// Call Close() when done.
type Backend struct {
	ctx *malgo.AllocatedContext
	log *zap.Logger

	mu    sync.Mutex
	infos []malgo.DeviceInfo
}

// NewBackend initializes the platform audio context.
func NewBackend(log *zap.Logger) (*Backend, error) {
	log = log.Named("audio")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug(strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &Backend{ctx: ctx, log: log}, nil
}

// Devices lists capture devices in the order the platform reports them.
func (b *Backend) Devices() ([]DeviceDescriptor, error) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}

	b.mu.Lock()
	b.infos = infos
	b.mu.Unlock()

	devices := make([]DeviceDescriptor, len(infos))
	for i := range infos {
		devices[i] = DeviceDescriptor{
			Index:            i,
			Name:             infos[i].Name(),
			MaxInputChannels: maxChannels(&infos[i]),
			IsDefault:        infos[i].IsDefault != 0,
		}
	}
	return devices, nil
}

// DefaultInput returns the index of the device flagged as the system default
// capture device in the last enumeration.
func (b *Backend) DefaultInput() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.infos {
		if b.infos[i].IsDefault != 0 {
			return i, true
		}
	}
	return -1, false
}

// OpenCapture opens and starts dev, delivering BlockFrames-sized chunks on
// chunks. dev must come from the most recent Devices call.
func (b *Backend) OpenCapture(dev DeviceDescriptor, opts CaptureOptions, chunks chan<- Chunk) (*Capture, error) {
	b.mu.Lock()
	if dev.Index < 0 || dev.Index >= len(b.infos) {
		b.mu.Unlock()
		return nil, fmt.Errorf("capture device index %d out of range", dev.Index)
	}
	id := b.infos[dev.Index].ID
	b.mu.Unlock()

	if opts.BlockFrames <= 0 {
		opts.BlockFrames = BlockFrames
	}

	c := newCapture(opts, chunks)

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = Channels
	deviceCfg.Capture.DeviceID = id.Pointer()
	deviceCfg.SampleRate = SampleRate
	deviceCfg.PeriodSizeInFrames = uint32(opts.BlockFrames)

	callbacks := malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: c.onStop,
	}

	device, err := malgo.InitDevice(b.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("initializing capture device %q: %w", dev.Name, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("starting capture device %q: %w", dev.Name, err)
	}

	c.device = device
	b.log.Debug("capture started",
		zap.String("device", dev.Name),
		zap.Int("sample_rate", SampleRate),
		zap.Int("block_frames", opts.BlockFrames))

	return c, nil
}

// Close releases the audio context.
func (b *Backend) Close() error {
	if b.ctx == nil {
		return nil
	}
	if err := b.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	b.ctx.Free()
	b.ctx = nil
	return nil
}

// maxChannels returns the largest channel count among the formats reported
// for a capture device. Enumeration alone often leaves the format list empty;
// every capture device delivers at least mono.
func maxChannels(info *malgo.DeviceInfo) int {
	n := 1
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		if ch := int(info.Formats[i].Channels); ch > n {
			n = ch
		}
	}
	return n
}
