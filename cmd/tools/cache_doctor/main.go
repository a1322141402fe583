package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/models"
)

func main() {
	var (
		dir      = flag.String("dir", config.DefaultCacheDir(), "model cache directory")
		fix      = flag.Bool("fix", false, "remove snapshot directories that lack model.bin")
		model    = flag.String("model", "", "model id to resolve, or to install with --install")
		install  = flag.String("install", "", "local weights file to install as --model")
		revision = flag.String("revision", "local", "snapshot revision used with --install")
	)
	flag.Parse()

	if strings.TrimSpace(*dir) == "" {
		fmt.Fprintln(os.Stderr, "cache_doctor: --dir must not be empty")
		os.Exit(2)
	}
	if *install != "" && strings.TrimSpace(*model) == "" {
		fmt.Fprintln(os.Stderr, "cache_doctor: --install requires --model")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	manager, err := models.NewManager(filepath.Clean(*dir), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache_doctor: init manager: %v\n", err)
		os.Exit(1)
	}

	if *install != "" {
		path, err := manager.Install(*model, *revision, *install)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cache_doctor: install %q: %v\n", *model, err)
			os.Exit(1)
		}
		fmt.Printf("Model %q installed at %s\n", *model, path)
	}

	broken, err := manager.Broken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache_doctor: scan: %v\n", err)
		os.Exit(1)
	}
	for _, snapshot := range broken {
		if !*fix {
			fmt.Printf("broken snapshot: %s\n", snapshot)
			continue
		}
		if err := os.RemoveAll(snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "cache_doctor: remove %s: %v\n", snapshot, err)
			continue
		}
		fmt.Printf("removed broken snapshot: %s\n", snapshot)
	}

	if *model != "" {
		path, err := manager.Resolve(*model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cache_doctor: resolve %q: %v\n", *model, err)
			os.Exit(1)
		}
		fmt.Printf("Model %q resolves to %s\n", *model, path)
	}

	if len(broken) > 0 && !*fix {
		os.Exit(1)
	}
}
