package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envGlintIndex     = "GLINT_INDEX"
	envGlintImagesDir = "GLINT_IMAGES_DIR"

	defaultIndexName     = "image_embeddings.bin"
	defaultTokenizerName = "tokenizer.json"
)

// resolveIndexPath picks the index file: the explicit path, else the default
// file name inside the gallery directory, else in the working directory.
func resolveIndexPath(indexFlag, imagesDir string) string {
	if p := strings.TrimSpace(indexFlag); p != "" {
		return filepath.Clean(p)
	}
	if dir := strings.TrimSpace(imagesDir); dir != "" {
		return filepath.Join(filepath.Clean(dir), defaultIndexName)
	}
	return defaultIndexName
}

// resolveBuildOut is resolveIndexPath for a file about to be written; the
// parent directory is created.
func resolveBuildOut(outFlag, imagesDir string) (string, error) {
	out := resolveIndexPath(outFlag, imagesDir)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	return out, nil
}

func resolveImagesDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("--images is required unless %s is set", envGlintImagesDir)
	}
	st, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("images path is not a directory: %s", dir)
	}
	return filepath.Clean(dir), nil
}

// resolveTokenizerPath returns the explicit tokenizer path, or a
// tokenizer.json found next to the text model.
func resolveTokenizerPath(tokFlag, textModel string) (string, error) {
	if p := strings.TrimSpace(tokFlag); p != "" {
		return filepath.Clean(p), nil
	}
	if m := strings.TrimSpace(textModel); m != "" {
		candidate := filepath.Join(filepath.Dir(m), defaultTokenizerName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.New("--tokenizer-json is required (no tokenizer.json next to the text model)")
}
