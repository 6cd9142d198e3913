// Command fetch-model downloads a Vosk model and unpacks it into the
// models directory where speech-to-text looks for it.
//
// Usage:
//
//	go run ./cmd/fetch-model --lang en-us [--dir vosk_speech_models]
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/adithya-ss/speech-to-text-app/internal/config"
	"github.com/adithya-ss/speech-to-text-app/internal/logging"
	"github.com/adithya-ss/speech-to-text-app/internal/models"
)

func main() {
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lang := flag.String("lang", "", "language to fetch: "+strings.Join(models.Languages(), ", ")+", or all")
	dir := flag.String("dir", cfg.ModelsDir, "models directory")
	baseURL := flag.String("url", models.DefaultBaseURL, "base URL of the model archives")
	flag.Parse()

	var langs []string
	switch {
	case *lang == "all":
		langs = models.Languages()
	case models.Supported(*lang):
		langs = []string{*lang}
	default:
		fmt.Fprintf(os.Stderr, "unsupported language %q (supported: %s, all)\n", *lang, strings.Join(models.Languages(), ", "))
		flag.Usage()
		os.Exit(2)
	}

	log := logging.New("fetch-model", cfg.LogLevel, os.Stdout)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &models.Downloader{
		BaseURL:  *baseURL,
		Client:   http.DefaultClient,
		Progress: os.Stdout,
		Log:      log,
	}
	for _, l := range langs {
		path, err := d.Download(ctx, *dir, l)
		if err != nil {
			log.Error("fetch failed", zap.String("lang", l), zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("%s: %s\n", l, path)
	}
}
