package models

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
)

// brokenCachePattern matches the loader message for a snapshot directory
// whose weights file cannot be opened. The first group is the directory.
var brokenCachePattern = regexp.MustCompile(`Unable to open file 'model\.bin' in model '([^']+)'`)

func brokenCacheError(snapshot string) error {
	return fmt.Errorf("Unable to open file '%s' in model '%s'", WeightsFile, snapshot)
}

// ClassifyLoadError reports whether err describes a broken cache snapshot
// and, if so, returns the snapshot directory named in the message.
func ClassifyLoadError(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	match := brokenCachePattern.FindStringSubmatch(err.Error())
	if match == nil {
		return "", false
	}
	return match[1], true
}

// RepairOptions customises LoadWithRepair. Zero values use the filesystem
// and slog.Default.
type RepairOptions struct {
	Logger    *slog.Logger
	Stat      func(string) (os.FileInfo, error)
	RemoveAll func(string) error
}

// LoadWithRepair calls load. If it fails with a broken-cache error whose
// snapshot directory exists, the directory is removed and load is called
// exactly once more. Every other failure is returned unchanged.
func LoadWithRepair[T any](load func() (T, error), opts RepairOptions) (T, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stat == nil {
		opts.Stat = os.Stat
	}
	if opts.RemoveAll == nil {
		opts.RemoveAll = os.RemoveAll
	}

	handle, err := load()
	if err == nil {
		return handle, nil
	}

	snapshot, ok := ClassifyLoadError(err)
	if !ok {
		return handle, err
	}
	if _, statErr := opts.Stat(snapshot); statErr != nil {
		return handle, err
	}

	opts.Logger.Warn("detected broken model cache, recreating",
		"component", "models.repair",
		"path", snapshot,
	)
	if rmErr := opts.RemoveAll(snapshot); rmErr != nil {
		opts.Logger.Warn("failed to remove broken cache entry", "path", snapshot, "error", rmErr)
	}
	return load()
}
