package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/models"
)

// ErrNativeEngineUnavailable indicates that the whisper.cpp backend was not compiled in.
var ErrNativeEngineUnavailable = errors.New("engine: native backend unavailable")

// LoadError reports that the acoustic model could not be obtained, even after
// the broken-cache repair path ran.
type LoadError struct {
	ModelID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %q: %v", e.ModelID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load returns a ready Model for cfg. The engine setting selects the backend:
// "stub" never touches the cache, "native" requires whisper.cpp, and "auto"
// uses whisper.cpp when compiled in and the stub otherwise.
func Load(cfg config.Config, manager *models.Manager, logger *slog.Logger) (Model, error) {
	return load(cfg, manager, logger, loadOptions{
		available: NativeAvailable,
		native:    NewNativeEngine,
	})
}

type loadOptions struct {
	available func() bool
	native    func(modelPath string, opts NativeOptions) (Model, error)
	repair    models.RepairOptions
}

func load(cfg config.Config, manager *models.Manager, logger *slog.Logger, opts loadOptions) (Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "engine.loader", "model", cfg.ModelID, "engine", cfg.Engine)

	switch cfg.Engine {
	case "stub":
		log.Warn("stub engine forced by configuration")
		return NewStubEngine(logger, cfg.ModelID), nil
	case "auto", "":
		if !opts.available() {
			log.Warn("native backend disabled at build time; using stub engine")
			return NewStubEngine(logger, cfg.ModelID), nil
		}
	case "native":
		if !opts.available() {
			return nil, &LoadError{ModelID: cfg.ModelID, Err: ErrNativeEngineUnavailable}
		}
	default:
		return nil, &LoadError{ModelID: cfg.ModelID, Err: fmt.Errorf("engine: unknown backend %q", cfg.Engine)}
	}

	if manager == nil {
		return nil, &LoadError{ModelID: cfg.ModelID, Err: errors.New("engine: model cache unavailable")}
	}

	nativeOpts := NativeOptionsFromConfig(cfg)
	repair := opts.repair
	if repair.Logger == nil {
		repair.Logger = logger
	}

	model, err := models.LoadWithRepair(func() (Model, error) {
		modelPath, err := manager.Resolve(cfg.ModelID)
		if err != nil {
			return nil, err
		}
		log.Info("resolved model path", "path", modelPath, "device", cfg.Device, "compute_type", cfg.ComputeType)
		return opts.native(modelPath, nativeOpts)
	}, repair)
	if err != nil {
		return nil, &LoadError{ModelID: cfg.ModelID, Err: err}
	}
	return model, nil
}
