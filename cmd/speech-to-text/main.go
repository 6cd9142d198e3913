// Command speech-to-text transcribes speech with an offline Vosk model, either
// live from a microphone or from a mono 16-bit PCM WAV file.
//
// Usage:
//
//	speech-to-text --mode realtime --lang en-us
//	speech-to-text --mode file --lang en-in --input recording.wav [--reference expected.txt]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adithya-ss/speech-to-text-app/internal/audio"
	"github.com/adithya-ss/speech-to-text-app/internal/config"
	"github.com/adithya-ss/speech-to-text-app/internal/logging"
	"github.com/adithya-ss/speech-to-text-app/internal/metrics"
	"github.com/adithya-ss/speech-to-text-app/internal/models"
	"github.com/adithya-ss/speech-to-text-app/internal/output"
	"github.com/adithya-ss/speech-to-text-app/internal/pipeline"
	"github.com/adithya-ss/speech-to-text-app/internal/transcribe"
)

// Swapped out in tests.
var (
	loadModel     transcribe.ModelLoader = transcribe.LoadVoskModel
	newBackend                           = newMalgoBackend
	notifyContext                        = signal.NotifyContext
)

// captureStream is a running capture.
type captureStream interface {
	Close()
}

// inputBackend is what realtime mode needs from the audio layer.
type inputBackend interface {
	audio.DeviceLister
	OpenCapture(dev audio.DeviceDescriptor, opts audio.CaptureOptions, chunks chan<- audio.Chunk) (captureStream, error)
	Close() error
}

type malgoBackend struct {
	*audio.Backend
}

func newMalgoBackend(log *zap.Logger) (inputBackend, error) {
	b, err := audio.NewBackend(log)
	if err != nil {
		return nil, err
	}
	return malgoBackend{b}, nil
}

func (b malgoBackend) OpenCapture(dev audio.DeviceDescriptor, opts audio.CaptureOptions, chunks chan<- audio.Chunk) (captureStream, error) {
	c, err := b.Backend.OpenCapture(dev, opts, chunks)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// interruptContext is cancelled by the first SIGINT or SIGTERM. Default
// signal handling comes back right after, so a second Ctrl+C ends the
// process even while the final result is being flushed.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := notifyContext(parent, os.Interrupt, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	mode       string
	lang       string
	input      string
	configPath string
	reference  string
}

// usageError is a bad or missing command-line argument.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// app carries what both modes need.
type app struct {
	opts    *options
	cfg     *config.Config
	log     *zap.Logger
	model   transcribe.Model
	sink    output.Sink
	metrics *metrics.Recorder
	session pipeline.Session
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stdout, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, source, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config validation: %v\n", err)
		return 1
	}

	log := logging.New("speech-to-text", cfg.LogLevel, stdout)
	defer func() { _ = log.Sync() }()
	transcribe.SetVoskLogging(logging.ParseLevel(cfg.LogLevel) == zap.DebugLevel)

	log.Info("starting Vosk speech-to-text application", zap.String("config", source))

	modelPath, err := models.Resolve(cfg.ModelsDir, opts.lang)
	if err != nil {
		fmt.Fprintf(stdout, "Model path '%s' not found. Please ensure the models are in the '%s' directory.\n",
			modelPath, cfg.ModelsDir)
		return 1
	}

	log.Info("loading model", zap.String("path", modelPath))
	start := time.Now()
	model, err := loadModel(modelPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load model: %v\n", err)
		return 1
	}
	defer func() {
		if err := model.Close(); err != nil {
			log.Warn("close model", zap.Error(err))
		}
	}()
	log.Info("model loaded", zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))

	a := &app{
		opts:    opts,
		cfg:     cfg,
		log:     log,
		model:   model,
		session: pipeline.Session{ID: uuid.NewString(), Language: opts.lang},
	}

	sinks := output.Multi{output.NewPrinter(stdout)}
	if cfg.Publish.NATSURL != "" {
		pub, err := output.ConnectNATS(cfg.Publish, log)
		if err != nil {
			log.Warn("transcript publishing disabled", zap.Error(err))
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}
	a.sink = sinks

	if cfg.MetricsAddr != "" {
		a.metrics = metrics.New()
	}

	ctx, stop := interruptContext(context.Background())
	defer stop()

	if err := a.dispatch(ctx); err != nil {
		a.metrics.RunFailed(opts.mode)
		log.Error(opts.mode+" transcription failed", zap.Error(err))
	}

	log.Info("application completed")
	return 0
}

// dispatch runs the selected mode, plus the metrics endpoint when one is
// configured. The endpoint shuts down as soon as the mode returns.
func (a *app) dispatch(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()

	if a.metrics != nil {
		g.Go(func() error {
			if err := a.metrics.Serve(serveCtx, a.cfg.MetricsAddr, a.log.Named("metrics")); err != nil {
				a.log.Warn("metrics endpoint unavailable", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stopServe()
		switch a.opts.mode {
		case pipeline.ModeRealtime:
			return a.realtime(gctx)
		default:
			return a.file(gctx)
		}
	})

	return g.Wait()
}

func (a *app) realtime(ctx context.Context) error {
	log := a.log.Named("realtime")
	log.Info("starting real-time transcription mode", zap.String("session", a.session.ID))

	backend, err := newBackend(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn("close audio backend", zap.Error(err))
		}
	}()

	dev, err := audio.SelectInputDevice(backend, audio.DevicePreferences{
		Name:     a.cfg.Device.Name,
		Keywords: a.cfg.Device.Keywords,
	}, log)
	if err != nil {
		return err
	}

	rec, err := a.model.NewRecognizer(audio.SampleRate)
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn("close recognizer", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	chunks := make(chan audio.Chunk, a.cfg.Audio.QueueDepth)
	capture, err := backend.OpenCapture(dev, audio.CaptureOptions{
		BlockFrames: audio.BlockFrames,
		OnStatus:    audio.StatusLogger(log, a.metrics.ChunkDropped),
		OnStop:      func() { cancel(audio.ErrDeviceStopped) },
	}, chunks)
	if err != nil {
		return err
	}
	defer capture.Close()

	log.Info("starting real-time transcription, press Ctrl+C to stop")
	loop := &pipeline.Realtime{
		Recognizer:   rec,
		Sink:         a.sink,
		Log:          log,
		Metrics:      a.metrics,
		Session:      a.session,
		PollInterval: a.cfg.Audio.PollInterval,
	}
	return loop.Run(ctx, chunks)
}

func (a *app) file(ctx context.Context) error {
	log := a.log.Named("file")
	log.Info("transcribing from file", zap.String("path", a.opts.input), zap.String("session", a.session.ID))

	loop := &pipeline.File{
		Model:       a.model,
		Sink:        a.sink,
		Log:         log,
		Metrics:     a.metrics,
		Session:     a.session,
		ChunkFrames: a.cfg.Audio.FileChunkFrames,
	}
	text, err := loop.Run(ctx, a.opts.input)
	if err != nil {
		return err
	}

	if a.opts.reference != "" {
		ref, err := os.ReadFile(a.opts.reference)
		if err != nil {
			log.Warn("reading reference transcript", zap.Error(err))
			return nil
		}
		we := transcribe.CompareWords(string(ref), text)
		log.Info("word error rate",
			zap.Float64("wer", we.Rate()),
			zap.Int("substitutions", we.Substitutions),
			zap.Int("insertions", we.Insertions),
			zap.Int("deletions", we.Deletions),
			zap.Int("reference_words", we.RefWords))
	}
	return nil
}

// parseArgs parses and validates the command line. Usage problems are
// reported on stderr together with the usage text; help goes to stdout.
func parseArgs(args []string, stdout, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("speech-to-text", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var o options
	modeHelp := "transcription mode: 'realtime' or 'file'"
	langHelp := "language model to use: " + strings.Join(models.Languages(), ", ")
	inputHelp := "path to the audio file (required for 'file' mode)"
	fs.StringVar(&o.mode, "mode", "", modeHelp)
	fs.StringVar(&o.mode, "m", "", modeHelp)
	fs.StringVar(&o.lang, "lang", "", langHelp)
	fs.StringVar(&o.lang, "l", "", langHelp)
	fs.StringVar(&o.input, "input", "", inputHelp)
	fs.StringVar(&o.input, "i", "", inputHelp)
	fs.StringVar(&o.configPath, "config", "", "path to config file (default: ~/.config/speech-to-text/config.yaml)")
	fs.StringVar(&o.reference, "reference", "", "reference transcript to score the file transcription against")

	usage := func(w io.Writer) {
		fmt.Fprintln(w, "usage: speech-to-text -m {realtime,file} -l {"+strings.Join(models.Languages(), ",")+"} [-i INPUT] [--config PATH] [--reference PATH]")
		fmt.Fprintln(w)
		fs.SetOutput(w)
		fs.PrintDefaults()
		fs.SetOutput(io.Discard)
	}
	fail := func(err error) (*options, error) {
		usage(stderr)
		fmt.Fprintf(stderr, "\nError: %v\n", err)
		return nil, err
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stdout)
			return nil, err
		}
		return fail(&usageError{msg: err.Error()})
	}
	if err := o.validate(fs.Args()); err != nil {
		return fail(err)
	}
	return &o, nil
}

func (o *options) validate(rest []string) error {
	if len(rest) > 0 {
		return &usageError{msg: fmt.Sprintf("unrecognized arguments: %s", strings.Join(rest, " "))}
	}
	switch o.mode {
	case pipeline.ModeRealtime, pipeline.ModeFile:
	case "":
		return &usageError{msg: "the following argument is required: -m/--mode"}
	default:
		return &usageError{msg: fmt.Sprintf("argument -m/--mode: invalid choice: %q (choose from 'realtime', 'file')", o.mode)}
	}
	if o.lang == "" {
		return &usageError{msg: "the following argument is required: -l/--lang"}
	}
	if !models.Supported(o.lang) {
		return &usageError{msg: fmt.Sprintf("argument -l/--lang: invalid choice: %q (choose from %s)",
			o.lang, strings.Join(models.Languages(), ", "))}
	}
	if o.mode == pipeline.ModeFile && o.input == "" {
		return &usageError{msg: "--input is required for 'file' mode"}
	}
	if o.mode != pipeline.ModeFile && o.reference != "" {
		return &usageError{msg: "--reference is only valid in 'file' mode"}
	}
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. Environment overrides
// apply in every case. The returned source describes where the config came from.
func loadConfig(path string) (*config.Config, string, error) {
	var (
		cfg    *config.Config
		source string
		err    error
	)

	switch {
	case path != "":
		cfg, err = config.Load(path)
		source = path
	default:
		defaultPath := config.DefaultConfigPath()
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			cfg, err = config.Load(defaultPath)
			if err != nil {
				err = fmt.Errorf("loading %s: %w", defaultPath, err)
			}
			source = defaultPath
		} else {
			cfg = config.Default()
			source = "defaults"
		}
	}
	if err != nil {
		return nil, "", err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, "", err
	}
	return cfg, source, nil
}
