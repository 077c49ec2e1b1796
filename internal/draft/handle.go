package draft

import "sync"

type ReleaseFunc func() error

// Handle owns a temporary resource, such as the preview of an uploaded file
// that has not been saved yet. The release func runs at most once. After
// Transfer the resource belongs to a committed record and Release does nothing.
type Handle struct {
	ref     string
	release ReleaseFunc

	mu          sync.Mutex
	released    bool
	transferred bool
}

func NewHandle(ref string, release ReleaseFunc) *Handle {
	return &Handle{
		ref:     ref,
		release: release,
	}
}

// Ref is the value stored in the draft record, usually a URL.
func (h *Handle) Ref() string {
	if h == nil {
		return ""
	}
	return h.ref
}

func (h *Handle) Release() error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released || h.transferred {
		return nil
	}
	h.released = true

	if h.release == nil {
		return nil
	}
	return h.release()
}

// Transfer hands ownership to whoever committed the record. It has no effect
// on a handle that was already released.
func (h *Handle) Transfer() {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.released {
		h.transferred = true
	}
}

func (h *Handle) Released() bool {
	if h == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *Handle) Transferred() bool {
	if h == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transferred
}
