package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cryguy/worker-go/internal/core"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("pool is closed")

// Pool keeps a fixed number of pre-warmed hosts. A host is handed to one
// caller at a time.
type Pool struct {
	hosts    chan *Host
	size     int
	cfg      HostConfig
	bindings Bindings

	mu     sync.Mutex
	closed bool
}

// NewPool creates cfg.PoolSize hosts sharing bindings.
func NewPool(cfg HostConfig, bindings Bindings) (*Pool, error) {
	if err := checkBindings(cfg, &bindings); err != nil {
		return nil, err
	}
	p := &Pool{
		hosts:    make(chan *Host, cfg.PoolSize),
		size:     cfg.PoolSize,
		cfg:      cfg,
		bindings: sharedBindings(bindings),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		h, err := newHost(p.cfg, p.bindings)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating pool host %d: %w", i, err)
		}
		p.hosts <- h
	}
	core.Logger().Info("host pool ready", zap.Int("size", cfg.PoolSize))
	return p, nil
}

// Config returns the pool configuration.
func (p *Pool) Config() HostConfig { return p.cfg }

// Get waits for a free host.
func (p *Pool) Get(ctx context.Context) (*Host, error) {
	select {
	case h, ok := <-p.hosts:
		if !ok {
			return nil, ErrPoolClosed
		}
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns h to the pool.
func (p *Pool) Put(h *Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = h.Close()
		return
	}
	p.hosts <- h
}

// Discard closes h and puts a fresh host in its place.
func (p *Pool) Discard(h *Host) {
	_ = h.Close()
	fresh, err := newHost(p.cfg, p.bindings)
	if err != nil {
		core.Logger().Error("replacing discarded host", zap.Error(err))
		p.mu.Lock()
		p.size--
		p.mu.Unlock()
		return
	}
	p.Put(fresh)
}

// Do runs fn with a host and returns the host afterwards. Values created
// during fn are released when it returns.
func (p *Pool) Do(ctx context.Context, fn func(*Host) error) error {
	h, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer p.Put(h)
	m := h.js.Mark()
	defer h.js.Release(m)
	return fn(h)
}

// Close closes every idle host. Hosts still checked out are closed when
// they are put back.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.hosts)
	for h := range p.hosts {
		_ = h.Close()
	}
}
