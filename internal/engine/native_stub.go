//go:build !whispercpp

package engine

// NativeAvailable reports whether the native whisper backend is compiled in.
func NativeAvailable() bool { return false }

// NewNativeEngine returns an error when the native backend is not built.
func NewNativeEngine(modelPath string, opts NativeOptions) (Model, error) {
	return nil, ErrNativeEngineUnavailable
}
