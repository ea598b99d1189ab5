package snippetdna

import (
	"context"
	"errors"
	"testing"
)

func newTestRegistry() *Registry {
	return NewRegistry(WithLogger(quietLogger()))
}

func TestRegistryLifecycle(t *testing.T) {
	r := newTestRegistry()
	h, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Handle must never be zero")
	}

	if err := r.AddReference(h, "chime", pcm(chime())); err != nil {
		t.Fatalf("AddReference failed: %v", err)
	}
	if err := r.Write(h, pcm(silence(500), chime(), silence(500))); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := r.Close(h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Close(h); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	ev, err := r.NextEvent(context.Background(), h)
	if err != nil || ev.Label != "chime" {
		t.Fatalf("Expected chime event, got %+v, %v", ev, err)
	}
	if _, err := r.NextEvent(context.Background(), h); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream, got %v", err)
	}
	if err := r.Write(h, pcm(silence(10))); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState after close, got %v", err)
	}

	if err := r.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Expected no live sessions, got %d", r.Len())
	}
}

func TestRegistryStaleHandle(t *testing.T) {
	r := newTestRegistry()
	old, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := r.Release(old); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	fresh, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	defer r.Release(fresh)

	if fresh.index() != old.index() {
		t.Errorf("Expected slot %d to be reused, got %d", old.index(), fresh.index())
	}
	if fresh == old {
		t.Fatal("Reused slot must carry a new generation")
	}

	for name, err := range map[string]error{
		"write":   r.Write(old, pcm(silence(10))),
		"close":   r.Close(old),
		"release": r.Release(old),
	} {
		if !errors.Is(err, ErrUnknownHandle) || !errors.Is(err, ErrInvalidState) {
			t.Errorf("%s: expected ErrUnknownHandle, got %v", name, err)
		}
	}
	if _, err := r.NextEvent(context.Background(), old); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("NextEvent: expected ErrUnknownHandle, got %v", err)
	}
	if _, err := r.Session(Handle(0)); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("zero handle: expected ErrUnknownHandle, got %v", err)
	}
	if _, err := r.Session(newHandle(99, 1)); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("out of range handle: expected ErrUnknownHandle, got %v", err)
	}
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.CreateSession()
	b, _ := r.CreateSession()
	defer r.Release(a)
	defer r.Release(b)

	if err := r.AddReference(a, "chime", pcm(chime())); err != nil {
		t.Fatalf("AddReference failed: %v", err)
	}
	stream := pcm(silence(500), chime(), silence(500))
	for _, h := range []Handle{a, b} {
		if err := r.Write(h, stream); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := r.Close(h); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	if _, err := r.NextEvent(context.Background(), a); err != nil {
		t.Errorf("Session a should have matched: %v", err)
	}
	if _, err := r.NextEvent(context.Background(), b); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Session b has no references, expected ErrEndOfStream, got %v", err)
	}
}
