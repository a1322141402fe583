// Package cli builds the whisper-stream command and runs one transcription
// session over standard input.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/models"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/moduleinfo"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// ExitError carries the process status for a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// App binds the command to its process streams. Zero fields fall back to the
// real process.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Lookup func(string) (string, bool)

	// LoadModel replaces engine.Load in tests.
	LoadModel func(cfg config.Config, manager *models.Manager, logger *slog.Logger) (engine.Model, error)
}

// Execute runs the command with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return (&App{}).Execute(ctx, args)
}

// Execute runs the command with args against the App's streams.
func (a *App) Execute(ctx context.Context, args []string) int {
	a.defaults()
	cmd := a.NewCommand()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(a.Stderr, "Error: %v\nRun '%s --help' for usage.\n", err, moduleinfo.Info.BinaryName)
	return ExitUsage
}

func (a *App) defaults() {
	if a.Stdin == nil {
		a.Stdin = os.Stdin
	}
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	if a.Stderr == nil {
		a.Stderr = os.Stderr
	}
	if a.Lookup == nil {
		a.Lookup = os.LookupEnv
	}
	if a.LoadModel == nil {
		a.LoadModel = engine.Load
	}
}

// NewCommand returns the root command. Help and usage go to stderr because
// stdout carries the event stream.
func (a *App) NewCommand() *cobra.Command {
	a.defaults()
	values := &flagValues{}

	cmd := &cobra.Command{
		Use:   moduleinfo.Info.BinaryName,
		Short: moduleinfo.Info.Description,
		Long: `Reads raw little-endian signed 16-bit mono PCM from stdin, cuts it into
fixed-duration chunks, skips chunks below the loudness floor, decodes the rest
with Whisper and writes ready, transcript, error and closed events to stdout as
one JSON object per line. Diagnostics go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), values.overrides(cmd.Flags()))
		},
	}
	cmd.SetIn(a.Stdin)
	cmd.SetOut(a.Stderr)
	cmd.SetErr(a.Stderr)
	values.register(cmd.Flags())
	return cmd
}

func newLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
