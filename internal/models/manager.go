package models

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// WeightsFile is the file every snapshot directory must contain.
	WeightsFile = "model.bin"

	snapshotsDir = "snapshots"
	refsMain     = "refs/main"
)

// ErrModelNotFound indicates that the cache holds no snapshot for a model.
var ErrModelNotFound = errors.New("models: model not found in cache")

// Manager resolves model identifiers to snapshot directories inside a cache
// store laid out as <base>/<model-id>/snapshots/<revision>/model.bin.
type Manager struct {
	baseDir string
	log     *slog.Logger
}

// NewManager creates the cache directory when missing and returns a Manager.
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("models: cache directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create cache dir: %w", err)
	}
	return &Manager{
		baseDir: filepath.Clean(baseDir),
		log:     logger.With("component", "models.Manager"),
	}, nil
}

// BaseDir returns the cache root.
func (m *Manager) BaseDir() string { return m.baseDir }

// ModelDir returns the cache entry for modelID.
func (m *Manager) ModelDir(modelID string) string {
	return filepath.Join(m.baseDir, sanitise(modelID))
}

// Resolve returns the path of the weights file for modelID. A modelID that
// names an existing directory is treated as a snapshot itself. A snapshot
// that lacks its weights file yields a broken-cache error recognised by
// ClassifyLoadError.
func (m *Manager) Resolve(modelID string) (string, error) {
	snapshot, err := m.Snapshot(modelID)
	if err != nil {
		return "", err
	}
	weights := filepath.Join(snapshot, WeightsFile)
	info, err := os.Stat(weights)
	if err != nil || info.IsDir() {
		return "", brokenCacheError(snapshot)
	}
	return weights, nil
}

// Snapshot picks the snapshot directory for modelID: the revision named by
// refs/main when present, otherwise the lexicographically newest one.
func (m *Manager) Snapshot(modelID string) (string, error) {
	if info, err := os.Stat(modelID); err == nil && info.IsDir() {
		return filepath.Clean(modelID), nil
	}

	entry := m.ModelDir(modelID)
	if ref, err := os.ReadFile(filepath.Join(entry, refsMain)); err == nil {
		revision := strings.TrimSpace(string(ref))
		if revision != "" {
			candidate := filepath.Join(entry, snapshotsDir, revision)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate, nil
			}
			m.log.Debug("refs/main points at missing snapshot", "model", modelID, "revision", revision)
		}
	}

	revisions, err := m.revisions(entry)
	if err != nil {
		return "", err
	}
	if len(revisions) == 0 {
		return "", fmt.Errorf("%w: %s (cache %s)", ErrModelNotFound, modelID, m.baseDir)
	}
	return filepath.Join(entry, snapshotsDir, revisions[len(revisions)-1]), nil
}

// Broken lists snapshot directories in the whole cache that lack a weights file.
func (m *Manager) Broken() ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("models: read cache dir: %w", err)
	}
	var broken []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		modelDir := filepath.Join(m.baseDir, entry.Name())
		revisions, err := m.revisions(modelDir)
		if err != nil {
			return nil, err
		}
		for _, revision := range revisions {
			snapshot := filepath.Join(modelDir, snapshotsDir, revision)
			if _, err := os.Stat(filepath.Join(snapshot, WeightsFile)); err != nil {
				broken = append(broken, snapshot)
			}
		}
	}
	return broken, nil
}

func (m *Manager) revisions(modelDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(modelDir, snapshotsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("models: read snapshots: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func sanitise(modelID string) string {
	trimmed := strings.TrimSpace(modelID)
	return strings.NewReplacer("/", "--", "\\", "--").Replace(trimmed)
}
