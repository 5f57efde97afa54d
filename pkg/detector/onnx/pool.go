package onnx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sei0217/visually-impaired/pkg/detector"
)

const (
	DefaultPoolSize = 2
	AcquireTimeout  = 30 * time.Second
)

// runner is one inference slot. Sessions are created once and reused; input and
// output tensors are allocated per call because the input size varies.
type runner interface {
	Run(inputs, outputs []tensor) error
	Destroy() error
}

type sessionPool struct {
	sessions chan runner
	size     int
	mu       sync.Mutex
	closed   bool
	metrics  poolMetrics
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
}

func newSessionPool(size int, newRunner func() (runner, error)) (*sessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &sessionPool{
		sessions: make(chan runner, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		r, err := newRunner()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- r
	}

	return pool, nil
}

func (p *sessionPool) Acquire(ctx context.Context) (runner, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("pool is closed")
	}

	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()

	select {
	case r, ok := <-p.sessions:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return r, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, fmt.Errorf("timeout waiting for available session")
	case <-ctx.Done():
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (p *sessionPool) Release(r runner) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		r.Destroy()
		return
	}
	p.sessions <- r
}

func (p *sessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sessions)

	for r := range p.sessions {
		r.Destroy()
	}
}

func (p *sessionPool) Metrics() detector.PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return detector.PoolMetrics{
		PoolSize:        p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
	}
}
