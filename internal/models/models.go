// Package models maps language codes to Vosk model directories and
// downloads them.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrModelNotFound       = errors.New("model directory not found")
)

// folders maps each supported language code to its folder under the models dir.
var folders = map[string]string{
	"en-us": "en-us-0.22",
	"en-in": "en-in-0.4",
}

// Languages returns the supported language codes, sorted.
func Languages() []string {
	langs := make([]string, 0, len(folders))
	for lang := range folders {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// Supported reports whether lang has a known model folder.
func Supported(lang string) bool {
	_, ok := folders[lang]
	return ok
}

// Folder returns the model folder name for lang.
func Folder(lang string) (string, error) {
	folder, ok := folders[lang]
	if !ok {
		return "", fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedLanguage, lang, strings.Join(Languages(), ", "))
	}
	return folder, nil
}

// Path returns baseDir/<folder for lang> without checking that it exists.
func Path(baseDir, lang string) (string, error) {
	folder, err := Folder(lang)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, folder), nil
}

// Resolve returns the model directory for lang and checks that it exists.
func Resolve(baseDir, lang string) (string, error) {
	path, err := Path(baseDir, lang)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return path, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	return path, nil
}
