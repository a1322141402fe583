package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/events"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/health"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/models"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/moduleinfo"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/pipeline"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/telemetry"
)

func fatal(err error) error {
	return &ExitError{Code: ExitFatal, Err: err}
}

func (a *App) run(parent context.Context, overrides config.Overrides) error {
	emitter := events.NewEmitter(a.Stdout)

	cfg, err := config.Loader{Lookup: a.Lookup}.Load(overrides)
	logger := newLogger(a.Stderr, cfg.LogLevel).With(moduleinfo.LogAttrs(cfg.ModelID, cfg.Language)...)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		_ = emitter.Error(err.Error())
		return fatal(err)
	}

	logger.Info("starting transcriber",
		"sample_rate", cfg.SampleRate,
		"chunk_ms", cfg.EffectiveChunkMs(),
		"device", cfg.Device,
		"compute_type", cfg.ComputeType,
		"engine", cfg.Engine,
		"cache_dir", cfg.CacheDir,
		"min_rms_dbfs", cfg.Thresholds.MinRMSDBFS,
		"min_segment_logprob", cfg.Thresholds.MinSegmentLogProb,
		"max_no_speech_prob", cfg.Thresholds.MaxNoSpeechProb,
		"max_compression_ratio", cfg.Thresholds.MaxCompressionRatio,
		"hallucination_silence_threshold", cfg.Thresholds.HallucinationSilence,
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var manager *models.Manager
	if cfg.Engine != "stub" {
		manager, err = models.NewManager(cfg.CacheDir, logger)
		if err != nil {
			logger.Error("failed to initialise model cache", "error", err)
			_ = emitter.Errorf("failed to load model: %v", err)
			return fatal(err)
		}
	}

	model, err := a.LoadModel(cfg, manager, logger)
	if err != nil {
		logger.Error("model load failed", "error", err)
		_ = emitter.Error(err.Error())
		return fatal(err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warn("failed to close engine", "error", err)
		}
	}()

	var (
		healthServer *health.Server
		healthLis    net.Listener
	)
	if cfg.HealthAddr != "" {
		healthLis, err = net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			logger.Error("failed to bind health listener", "addr", cfg.HealthAddr, "error", err)
			_ = emitter.Errorf("failed to start health endpoint: %v", err)
			return fatal(err)
		}
		healthServer = health.New(moduleinfo.Info.HealthService, logger)
	}

	if err := emitter.Ready(cfg.ModelID, cfg.Language, cfg.SampleRate, cfg.ChunkMs); err != nil {
		logger.Error("failed to write ready event", "error", err)
		if healthLis != nil {
			_ = healthLis.Close()
		}
		return fatal(err)
	}
	if healthServer != nil {
		healthServer.SetServing(true)
	}

	recorder := telemetry.NewRecorder(logger)
	runner := pipeline.NewRunner(cfg, model, emitter, recorder, logger)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	group, groupCtx := errgroup.WithContext(runCtx)

	var runErr error
	group.Go(func() error {
		defer cancelRun()
		runErr = runner.Run(groupCtx, a.Stdin)
		return nil
	})
	if healthServer != nil {
		group.Go(func() error {
			return healthServer.Serve(groupCtx, healthLis)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		// A blocked read only returns once stdin is closed.
		if ctx.Err() != nil {
			if closer, ok := a.Stdin.(io.Closer); ok {
				_ = closer.Close()
			}
		}
		return nil
	})
	groupErr := group.Wait()

	if err := emitter.Closed(); err != nil {
		logger.Warn("failed to write closed event", "error", err)
	}

	snapshot := recorder.Snapshot()
	logger.Info("telemetry totals",
		"total_bytes", snapshot.TotalBytes,
		"total_chunks", snapshot.TotalChunks,
		"total_gated", snapshot.TotalGated,
		"total_decoded", snapshot.TotalDecoded,
		"total_decode_errors", snapshot.TotalDecodeErrors,
		"accepted_segments", snapshot.AcceptedSegments,
		"total_transcripts", snapshot.TotalTranscripts,
	)

	switch {
	case groupErr != nil:
		logger.Error("health server terminated with error", "error", groupErr)
		return fatal(fmt.Errorf("health: %w", groupErr))
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) && ctx.Err() != nil:
		logger.Info("shutdown requested")
	default:
		logger.Error("stream terminated with error", "error", runErr)
		return fatal(runErr)
	}

	logger.Info("transcriber stopped")
	return nil
}
