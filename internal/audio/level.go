package audio

import "math"

// rmsFloor keeps the logarithm finite for digital silence.
const rmsFloor = 1e-9

// PCMToFloat32 maps samples to [-1, 1) by dividing by 32768.
func PCMToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// DBFS returns the RMS level of normalised samples in decibels relative to
// full scale. An empty slice reports the floor level.
func DBFS(samples []float32) float64 {
	if len(samples) == 0 {
		return 20 * math.Log10(rmsFloor)
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return 20 * math.Log10(math.Max(rms, rmsFloor))
}

// PassesGate reports whether samples are loud enough to decode.
// Empty input never passes.
func PassesGate(samples []float32, floorDBFS float64) bool {
	if len(samples) == 0 {
		return false
	}
	return DBFS(samples) >= floorDBFS
}
