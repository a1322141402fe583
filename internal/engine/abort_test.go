//go:build cgo

package engine

import (
	"context"
	"runtime/cgo"
	"testing"
	"unsafe"
)

func TestHandleContext(t *testing.T) {
	ctx := context.Background()
	handle := cgo.NewHandle(ctx)
	defer handle.Delete()

	got, ok := handleContext(unsafe.Pointer(&handle))
	if !ok || got != ctx {
		t.Fatalf("expected original context, got %#v (ok=%v)", got, ok)
	}
}

func TestHandleContextRejectsOtherValues(t *testing.T) {
	handle := cgo.NewHandle("not a context")
	defer handle.Delete()

	if _, ok := handleContext(unsafe.Pointer(&handle)); ok {
		t.Fatalf("expected ok=false for non-context handle")
	}
}

func TestHandleContextDeleted(t *testing.T) {
	handle := cgo.NewHandle(context.Background())
	ptr := unsafe.Pointer(&handle)
	handle.Delete()

	if _, ok := handleContext(ptr); ok {
		t.Fatalf("expected ok=false for deleted handle")
	}
}

func TestHandleContextNil(t *testing.T) {
	if _, ok := handleContext(nil); ok {
		t.Fatalf("expected ok=false for nil")
	}
}

func TestAbortRequested(t *testing.T) {
	active := cgo.NewHandle(context.Background())
	defer active.Delete()
	if abortRequested(unsafe.Pointer(&active)) {
		t.Fatalf("expected no abort for active context")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := cgo.NewHandle(ctx)
	defer cancelled.Delete()
	if !abortRequested(unsafe.Pointer(&cancelled)) {
		t.Fatalf("expected abort for cancelled context")
	}
}
