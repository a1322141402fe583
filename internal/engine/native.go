//go:build whispercpp

package engine

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include "stdlib.h"
#include "include/whisper.h"
#include "ggml.h"

bool whisperGoAbort(void * user_data);
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/cgo"
	"strings"
	"sync"
	"unsafe"
)

func NativeAvailable() bool { return true }

// NativeEngine decodes chunks with whisper.cpp. Each call gets a fresh
// whisper_state, so no text context leaks from one chunk into the next.
type NativeEngine struct {
	mu   sync.Mutex
	ctx  *C.struct_whisper_context
	opts NativeOptions
	log  *slog.Logger

	warnOnce sync.Once
}

func NewNativeEngine(modelPath string, opts NativeOptions) (Model, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path required")
	}
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	cParams := C.whisper_context_default_params()
	cParams.use_gpu = C.bool(opts.UseGPU)
	cParams.gpu_device = C.int(opts.GPUDevice)
	cParams.flash_attn = C.bool(opts.FlashAttention)

	ctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if ctx == nil {
		return nil, fmt.Errorf("whisper: failed to initialise context for %s", modelPath)
	}

	logger := slog.Default().With("component", "engine.native", "model_path", modelPath)
	logger.Info("native engine ready",
		"use_gpu", opts.UseGPU,
		"gpu_device", opts.GPUDevice,
		"flash_attn", opts.FlashAttention,
		"compute_type", opts.ComputeType,
	)
	return &NativeEngine{ctx: ctx, opts: opts, log: logger}, nil
}

func (e *NativeEngine) Transcribe(ctx context.Context, samples []float32, language string, params DecodeParams) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return nil, errors.New("whisper: engine closed")
	}

	e.warnOnce.Do(func() {
		if params.VADFilter && e.opts.VADModelPath == "" {
			e.log.Warn("VAD requested but no VAD model configured; decoding without VAD")
		}
		if params.HallucinationSilenceThreshold > 0 {
			e.log.Debug("hallucination silence threshold not supported by whisper.cpp; relying on host filtering",
				"threshold", params.HallucinationSilenceThreshold)
		}
	})

	state := C.whisper_init_state(e.ctx)
	if state == nil {
		return nil, errors.New("whisper: failed to initialise state")
	}
	defer C.whisper_free_state(state)

	strategy := C.enum_whisper_sampling_strategy(C.WHISPER_SAMPLING_GREEDY)
	if params.BeamSize > 1 {
		strategy = C.enum_whisper_sampling_strategy(C.WHISPER_SAMPLING_BEAM_SEARCH)
	}
	wp := C.whisper_full_default_params(strategy)
	wp.print_progress = C.bool(false)
	wp.print_realtime = C.bool(false)
	wp.print_timestamps = C.bool(false)
	wp.print_special = C.bool(false)
	wp.translate = C.bool(false)
	wp.single_segment = C.bool(false)
	wp.no_context = C.bool(!params.ConditionOnPreviousText)
	wp.greedy.best_of = C.int(params.BestOf)
	wp.beam_search.beam_size = C.int(params.BeamSize)
	wp.temperature = C.float(params.Temperature)
	wp.temperature_inc = C.float(0)
	wp.logprob_thold = C.float(params.LogProbThreshold)
	wp.no_speech_thold = C.float(params.NoSpeechThreshold)
	if e.opts.Threads > 0 {
		wp.n_threads = C.int(e.opts.Threads)
	}

	lang := normaliseLanguage(language)
	if lang == "" {
		lang = "auto"
	}
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	wp.language = cLang

	if params.VADFilter && e.opts.VADModelPath != "" {
		cVAD := C.CString(e.opts.VADModelPath)
		defer C.free(unsafe.Pointer(cVAD))
		wp.vad = C.bool(true)
		wp.vad_model_path = cVAD
		wp.vad_params = C.whisper_vad_default_params()
		wp.vad_params.min_silence_duration_ms = C.int(params.VAD.MinSilenceDurationMs)
		wp.vad_params.speech_pad_ms = C.int(params.VAD.SpeechPadMs)
	}

	handle := cgo.NewHandle(ctx)
	defer handle.Delete()
	wp.abort_callback = (C.ggml_abort_callback)(C.whisperGoAbort)
	wp.abort_callback_user_data = unsafe.Pointer(&handle)

	cSamples := (*C.float)(unsafe.Pointer(&samples[0]))
	if ret := C.whisper_full_with_state(e.ctx, state, wp, cSamples, C.int(len(samples))); ret != 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("whisper: inference failed with code %d", int(ret))
	}

	return e.collectSegments(state), nil
}

func (e *NativeEngine) collectSegments(state *C.struct_whisper_state) []Segment {
	count := int(C.whisper_full_n_segments_from_state(state))
	if count == 0 {
		return nil
	}
	eot := C.whisper_token_eot(e.ctx)
	out := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		text := C.GoString(C.whisper_full_get_segment_text_from_state(state, C.int(i)))
		if strings.EqualFold(strings.TrimSpace(text), "[BLANK_AUDIO]") {
			continue
		}

		var (
			sumLogProb float64
			tokens     int
		)
		nTokens := int(C.whisper_full_n_tokens_from_state(state, C.int(i)))
		for j := 0; j < nTokens; j++ {
			data := C.whisper_full_get_token_data_from_state(state, C.int(i), C.int(j))
			if data.id >= eot {
				continue
			}
			sumLogProb += float64(data.plog)
			tokens++
		}
		avg := 0.0
		if tokens > 0 {
			avg = sumLogProb / float64(tokens)
		}

		out = append(out, Segment{
			Text:             text,
			AvgLogProb:       avg,
			NoSpeechProb:     float64(C.whisper_full_get_segment_no_speech_prob_from_state(state, C.int(i))),
			CompressionRatio: CompressionRatio(strings.TrimSpace(text)),
		})
	}
	return out
}

func (e *NativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		C.whisper_free(e.ctx)
		e.ctx = nil
	}
	return nil
}

//export whisperGoAbort
func whisperGoAbort(userData unsafe.Pointer) C.bool {
	return C.bool(abortRequested(userData))
}
