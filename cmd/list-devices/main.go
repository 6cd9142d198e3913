// Command list-devices is a manual check for input device selection.
// It prints every capture device the platform reports and the one
// speech-to-text would use in realtime mode.
//
// Usage:
//
//	go run ./cmd/list-devices [--config path]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/adithya-ss/speech-to-text-app/internal/audio"
	"github.com/adithya-ss/speech-to-text-app/internal/config"
	"github.com/adithya-ss/speech-to-text-app/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: built-in device keywords)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("list-devices", cfg.LogLevel, os.Stdout)
	defer func() { _ = log.Sync() }()

	backend, err := audio.NewBackend(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	devices, err := backend.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d capture device(s):\n", len(devices))
	for _, dev := range devices {
		marker := " "
		if dev.IsDefault {
			marker = "*"
		}
		fmt.Printf(" %s [%d] %s (%d ch)\n", marker, dev.Index, dev.Name, dev.MaxInputChannels)
	}

	dev, err := audio.SelectInputDevice(backend, audio.DevicePreferences{
		Name:     cfg.Device.Name,
		Keywords: cfg.Device.Keywords,
	}, log)
	if errors.Is(err, audio.ErrNoInputDevice) {
		fmt.Println("Selected: none")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Selected: [%d] %s\n", dev.Index, dev.Name)
}
