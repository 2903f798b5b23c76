package tunnel

import (
	"context"
	"sync"
)

// NoopProvider keeps a single in-memory handle. Default backend for
// development hosts without wg-quick.
type NoopProvider struct {
	mu     sync.Mutex
	handle *noopHandle
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (p *NoopProvider) Existing(_ context.Context) (Handle, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return nil, false, nil
	}
	return p.handle, true, nil
}

func (p *NoopProvider) Create(_ context.Context) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		p.handle = &noopHandle{status: StatusDisconnected}
	}
	return p.handle, nil
}

type noopHandle struct {
	mu     sync.Mutex
	config string
	status Status
}

func (h *noopHandle) SetConfig(_ context.Context, config string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = config
	return nil
}

func (h *noopHandle) Start(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = StatusConnected
	return nil
}

func (h *noopHandle) Stop(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = StatusDisconnected
	return nil
}

func (h *noopHandle) Status(_ context.Context) (Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, nil
}
