package transcribe

import (
	"errors"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"
)

// SetVoskLogging toggles the engine's own logging, which is noisy at load time.
func SetVoskLogging(verbose bool) {
	if verbose {
		vosk.SetLogLevel(0)
		return
	}
	vosk.SetLogLevel(-1)
}

// VoskModel wraps a loaded Vosk model directory.
type VoskModel struct {
	model *vosk.VoskModel
}

// LoadVoskModel loads the model stored in dir.
// The caller must call Close() when done.
func LoadVoskModel(dir string) (Model, error) {
	model, err := vosk.NewModel(dir)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load vosk model %q: %w", dir, err)
	}
	return &VoskModel{model: model}, nil
}

// NewRecognizer creates a recognizer expecting audio at sampleRate.
func (m *VoskModel) NewRecognizer(sampleRate float64) (Recognizer, error) {
	rec, err := vosk.NewRecognizer(m.model, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create recognizer: %w", err)
	}
	return &voskRecognizer{rec: rec}, nil
}

// Close releases the model resources.
func (m *VoskModel) Close() error {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

var errAcceptWaveform = errors.New("transcribe: vosk rejected waveform")

type voskRecognizer struct {
	rec *vosk.VoskRecognizer
}

func (r *voskRecognizer) Accept(pcm []byte) (bool, error) {
	switch r.rec.AcceptWaveform(pcm) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, errAcceptWaveform
	}
}

func (r *voskRecognizer) Result() (Result, error) {
	return ParseResult(r.rec.Result())
}

func (r *voskRecognizer) FinalResult() (Result, error) {
	return ParseResult(r.rec.FinalResult())
}

func (r *voskRecognizer) Close() error {
	if r.rec != nil {
		r.rec.Free()
		r.rec = nil
	}
	return nil
}
