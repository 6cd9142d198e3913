package models

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultBaseURL is where the Vosk project publishes its model archives.
const DefaultBaseURL = "https://alphacephei.com/vosk/models"

// ArchiveName returns the published archive name for a model folder,
// e.g. en-us-0.22 -> vosk-model-en-us-0.22.zip.
func ArchiveName(folder string) string {
	return "vosk-model-" + folder + ".zip"
}

// Downloader fetches and unpacks model archives into a models directory.
type Downloader struct {
	BaseURL  string
	Client   *http.Client
	Progress io.Writer // receives a progress line while downloading; may be nil
	Log      *zap.Logger
}

// Download installs the model for lang under baseDir and returns its path.
// An existing model directory is left untouched.
func (d *Downloader) Download(ctx context.Context, baseDir, lang string) (string, error) {
	dest, err := Path(baseDir, lang)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		d.Log.Info("model already installed", zap.String("path", dest))
		return dest, nil
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	folder := filepath.Base(dest)
	url := strings.TrimSuffix(d.BaseURL, "/") + "/" + ArchiveName(folder)
	d.Log.Info("downloading model", zap.String("url", url), zap.String("dest", dest))

	tmp, err := os.CreateTemp(baseDir, ".download-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	written, err := d.fetch(ctx, url, tmp, folder)
	if err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing archive: %w", err)
	}
	d.Log.Info("download complete", zap.Float64("mb", float64(written)/(1024*1024)))

	// Extract into a staging dir under baseDir and rename into place.
	staging, err := os.MkdirTemp(baseDir, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractZip(tmp.Name(), staging); err != nil {
		return "", fmt.Errorf("extracting %s: %w", ArchiveName(folder), err)
	}

	if err := os.Rename(filepath.Join(staging, "vosk-model-"+folder), dest); err != nil {
		return "", fmt.Errorf("moving model into place: %w", err)
	}

	d.Log.Info("model installed", zap.String("path", dest))
	return dest, nil
}

func (d *Downloader) fetch(ctx context.Context, url string, w io.Writer, label string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	if d.Progress != nil {
		w = &progressWriter{writer: w, out: d.Progress, total: resp.ContentLength, label: label}
	}

	written, err := io.Copy(w, resp.Body)
	if d.Progress != nil {
		fmt.Fprintln(d.Progress)
	}
	if err != nil {
		return written, fmt.Errorf("writing model archive: %w", err)
	}
	return written, nil
}

// extractZip unpacks archive into dir, refusing entries that escape it.
func extractZip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, f := range r.File {
		target := filepath.Join(dir, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// progressWriter wraps an io.Writer and prints download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
