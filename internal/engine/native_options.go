package engine

import (
	"strconv"
	"strings"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
)

// NativeOptions configures the whisper.cpp backend.
type NativeOptions struct {
	UseGPU    bool
	GPUDevice int
	// FlashAttention is enabled for half-precision compute types on GPU.
	FlashAttention bool
	// Threads is the decoder thread count; 0 keeps the whisper.cpp default.
	Threads int
	// VADModelPath points at a Silero VAD model in ggml format. Empty disables
	// the model-internal VAD even when DecodeParams requests it.
	VADModelPath string
	ComputeType  string
}

// NativeOptionsFromConfig maps the device selector and compute precision onto
// whisper.cpp context options. Accepted devices: auto, cpu, cuda, cuda:N, gpu, gpu:N.
func NativeOptionsFromConfig(cfg config.Config) NativeOptions {
	useGPU, device := parseDevice(cfg.Device)
	compute := strings.ToLower(strings.TrimSpace(cfg.ComputeType))
	return NativeOptions{
		UseGPU:         useGPU,
		GPUDevice:      device,
		FlashAttention: useGPU && strings.Contains(compute, "float16"),
		Threads:        cfg.Threads,
		VADModelPath:   strings.TrimSpace(cfg.VADModelPath),
		ComputeType:    compute,
	}
}

func parseDevice(value string) (bool, int) {
	name, index, _ := strings.Cut(strings.ToLower(strings.TrimSpace(value)), ":")
	switch name {
	case "cpu":
		return false, 0
	case "cuda", "gpu", "metal", "auto", "":
		device := 0
		if n, err := strconv.Atoi(index); err == nil && n >= 0 {
			device = n
		}
		return true, device
	default:
		return false, 0
	}
}
