package models

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Install copies a local weights file into the cache as snapshot revision of
// modelID and points refs/main at it. It returns the installed weights path.
func (m *Manager) Install(modelID, revision, src string) (string, error) {
	revision = strings.TrimSpace(revision)
	if revision == "" || strings.ContainsAny(revision, `/\`) || revision == "." || revision == ".." {
		return "", fmt.Errorf("models: invalid revision %q", revision)
	}
	if strings.TrimSpace(modelID) == "" {
		return "", errors.New("models: model id is required")
	}

	entry := m.ModelDir(modelID)
	snapshot := filepath.Join(entry, snapshotsDir, revision)
	if err := os.MkdirAll(snapshot, 0o755); err != nil {
		return "", fmt.Errorf("models: create snapshot: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("models: open weights: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(snapshot, WeightsFile+".*.part")
	if err != nil {
		return "", fmt.Errorf("models: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("models: copy weights: %w", err)
	}

	target := filepath.Join(snapshot, WeightsFile)
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("models: install weights: %w", err)
	}

	refPath := filepath.Join(entry, refsMain)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return "", fmt.Errorf("models: create refs dir: %w", err)
	}
	if err := os.WriteFile(refPath, []byte(revision+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("models: write refs/main: %w", err)
	}

	m.log.Info("model installed", "model", modelID, "revision", revision, "bytes", written, "path", target)
	return target, nil
}
