package audio

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DeviceDescriptor describes an audio device as reported by the backend.
type DeviceDescriptor struct {
	Index            int
	Name             string
	MaxInputChannels int
	IsDefault        bool
}

// DeviceLister enumerates input devices. Backend implements it over malgo;
// tests use a fixed list.
type DeviceLister interface {
	// Devices returns devices in enumeration order. Index matches position.
	Devices() ([]DeviceDescriptor, error)
	// DefaultInput returns the index of the system default input device.
	DefaultInput() (int, bool)
}

// DevicePreferences steer SelectInputDevice.
type DevicePreferences struct {
	// Name, when set, picks the device with this exact name (case-insensitive).
	Name string
	// Keywords are matched case-insensitively against device names.
	Keywords []string
}

// SelectInputDevice picks the first input device whose name contains one of
// the preference keywords, falling back to the system default. It returns
// ErrNoInputDevice when neither exists.
func SelectInputDevice(lister DeviceLister, prefs DevicePreferences, log *zap.Logger) (DeviceDescriptor, error) {
	devices, err := lister.Devices()
	if err != nil {
		return DeviceDescriptor{}, fmt.Errorf("audio: enumerate devices: %w", err)
	}

	if prefs.Name != "" {
		for _, dev := range devices {
			if dev.MaxInputChannels > 0 && strings.EqualFold(dev.Name, prefs.Name) {
				log.Info("using configured input device", zap.String("device", dev.Name), zap.Int("index", dev.Index))
				return dev, nil
			}
		}
		log.Warn("configured input device not found", zap.String("device", prefs.Name))
	}

	for _, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		name := strings.ToLower(dev.Name)
		for _, kw := range prefs.Keywords {
			if strings.Contains(name, strings.ToLower(kw)) {
				log.Info("auto-selected input device", zap.String("device", dev.Name), zap.Int("index", dev.Index))
				return dev, nil
			}
		}
	}

	if idx, ok := lister.DefaultInput(); ok && idx >= 0 && idx < len(devices) && devices[idx].MaxInputChannels > 0 {
		dev := devices[idx]
		log.Info("using default input device", zap.String("device", dev.Name), zap.Int("index", dev.Index))
		return dev, nil
	}

	log.Info("no suitable input device found")
	return DeviceDescriptor{}, ErrNoInputDevice
}
