package main

import (
	"context"
	"os"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
