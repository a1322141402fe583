//go:build cgo

package engine

import (
	"context"
	"runtime/cgo"
	"unsafe"
)

// handleContext recovers the context stored behind a *cgo.Handle passed to
// whisper.cpp as abort_callback_user_data.
func handleContext(userData unsafe.Pointer) (ctx context.Context, ok bool) {
	if userData == nil {
		return nil, false
	}
	handle := *(*cgo.Handle)(userData)
	if handle == 0 {
		return nil, false
	}

	// Value panics on a deleted handle.
	defer func() {
		if recover() != nil {
			ctx, ok = nil, false
		}
	}()
	ctx, ok = handle.Value().(context.Context)
	return ctx, ok
}

func abortRequested(userData unsafe.Pointer) bool {
	ctx, ok := handleContext(userData)
	return ok && ctx.Err() != nil
}
