package snippetdna

import (
	"context"
	"fmt"
	"sync"

	"github.com/himanishpuri/SnippetDNA/pkg/models"
)

// Handle addresses a session in a Registry. The upper 32 bits carry the slot
// generation and the lower 32 bits the slot index; the zero Handle is never
// issued.
type Handle uint64

func newHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.index(), h.generation())
}

type slot struct {
	generation uint32
	session    *Session
}

// Registry is an arena of sessions for callers that can only pass plain
// integers, such as the wasm binding.
type Registry struct {
	mu    sync.Mutex
	opts  []Option
	slots []slot
	free  []uint32
}

// DefaultRegistry backs the package-level bindings.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry. opts apply to every session it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts}
}

// CreateSession opens a session and returns its handle.
func (r *Registry) CreateSession(opts ...Option) (Handle, error) {
	all := append(append([]Option(nil), r.opts...), opts...)
	s, err := NewSession(all...)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[idx].session = s
		return newHandle(idx, r.slots[idx].generation), nil
	}
	idx := uint32(len(r.slots))
	r.slots = append(r.slots, slot{generation: 1, session: s})
	return newHandle(idx, 1), nil
}

// Session resolves h. Released or unknown handles fail with ErrUnknownHandle.
func (r *Registry) Session(h Handle) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(h)
}

func (r *Registry) lookupLocked(h Handle) (*Session, error) {
	idx := h.index()
	if int(idx) >= len(r.slots) {
		return nil, fmt.Errorf("%w %s", ErrUnknownHandle, h)
	}
	sl := r.slots[idx]
	if sl.session == nil || sl.generation != h.generation() {
		return nil, fmt.Errorf("%w %s", ErrUnknownHandle, h)
	}
	return sl.session, nil
}

func (r *Registry) AddReference(h Handle, label string, pcm []byte) error {
	s, err := r.Session(h)
	if err != nil {
		return err
	}
	_, err = s.AddReference(label, pcm)
	return err
}

func (r *Registry) Write(h Handle, pcm []byte) error {
	s, err := r.Session(h)
	if err != nil {
		return err
	}
	return s.Write(pcm)
}

// Close ends the session's stream; the handle stays valid for draining events.
func (r *Registry) Close(h Handle) error {
	s, err := r.Session(h)
	if err != nil {
		return err
	}
	return s.Close()
}

func (r *Registry) NextEvent(ctx context.Context, h Handle) (models.MatchEvent, error) {
	s, err := r.Session(h)
	if err != nil {
		return models.MatchEvent{}, err
	}
	return s.Next(ctx)
}

// Release closes the session and frees its slot. h is invalid afterwards.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	s, err := r.lookupLocked(h)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	idx := h.index()
	r.slots[idx].session = nil
	r.slots[idx].generation++
	if r.slots[idx].generation == 0 {
		r.slots[idx].generation = 1
	}
	r.free = append(r.free, idx)
	r.mu.Unlock()

	return s.Close()
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots) - len(r.free)
}
