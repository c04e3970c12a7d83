// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("connection pool is closed")

// Releaser takes back a connection handed out by Acquire.
type Releaser interface {
	Release(c *Conn)
}

// Pool manages connections to multiple virtual hosts.
// It dials lazily, keeps a bounded set of idle connections per host and
// closes idle connections that outlive IdleTimeout.
type Pool struct {
	mu       sync.RWMutex
	hosts    map[string]*hostPool // virtual host -> pool
	opts     Options
	acquired atomic.Int64
	closed   atomic.Bool
}

// hostPool manages connections to a single virtual host
type hostPool struct {
	mu   sync.Mutex
	host string
	idle []*Conn
	// sem holds one token per connection handed out by Acquire. Idle
	// connections hold none.
	sem chan struct{}
}

// NewPool creates a new connection pool
func NewPool(opts ...Option) *Pool {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return newPool(options)
}

func newPool(options Options) *Pool {
	options.normalize()
	return &Pool{
		hosts: make(map[string]*hostPool),
		opts:  options,
	}
}

// Acquire returns a connection for host, reusing an idle one when
// possible. It blocks while the host is at MaxConnsPerHost, until a
// connection is released or ctx is done.
func (p *Pool) Acquire(ctx context.Context, host string) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hp := p.getOrCreateHostPool(host)
	select {
	case hp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for {
		c := hp.takeIdle(p.opts.IdleTimeout)
		if c == nil {
			break
		}
		if !c.unpark() {
			logger.Debug().Str("host", host).Msg("dropped idle connection closed by peer")
			continue
		}
		p.acquired.Add(1)
		p.opts.Metrics.reused()
		return c, nil
	}

	c, err := dial(ctx, host, &p.opts)
	if err != nil {
		<-hp.sem
		return nil, err
	}
	p.acquired.Add(1)

	logger.Debug().
		Str("host", host).
		Int("in_use", len(hp.sem)).
		Msg("dialed new connection")
	return c, nil
}

// Release returns c to its host pool. A closed connection, or one that
// does not fit in the idle set, is discarded.
func (p *Pool) Release(c *Conn) {
	p.acquired.Add(-1)

	p.mu.RLock()
	hp, ok := p.hosts[c.host]
	p.mu.RUnlock()
	if !ok {
		// The pool was closed while c was in use.
		c.Close()
		return
	}

	if !c.Closed() && !p.closed.Load() {
		hp.mu.Lock()
		if len(hp.idle) < p.opts.MaxIdlePerHost {
			c.idleSince = time.Now()
			c.park()
			hp.idle = append(hp.idle, c)
			hp.mu.Unlock()
			<-hp.sem
			return
		}
		hp.mu.Unlock()
	}

	c.Close()
	<-hp.sem
}

// Acquired reports the number of connections handed out and not yet released.
func (p *Pool) Acquired() int {
	return int(p.acquired.Load())
}

// Idle reports the number of live idle connections across all hosts.
func (p *Pool) Idle() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, hp := range p.hosts {
		hp.mu.Lock()
		for _, c := range hp.idle {
			if !c.Closed() {
				n++
			}
		}
		hp.mu.Unlock()
	}
	return n
}

// Hosts returns all virtual hosts in the pool
func (p *Pool) Hosts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	hosts := make([]string, 0, len(p.hosts))
	for host := range p.hosts {
		hosts = append(hosts, host)
	}
	return hosts
}

// Close closes all idle connections. Connections in use are closed when
// they are released.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	p.mu.Lock()
	hosts := p.hosts
	p.hosts = make(map[string]*hostPool)
	p.mu.Unlock()

	var errs []error
	for _, hp := range hosts {
		if err := hp.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// getOrCreateHostPool gets or creates a host pool for the virtual host
func (p *Pool) getOrCreateHostPool(host string) *hostPool {
	// Fast path: check if exists
	p.mu.RLock()
	hp, exists := p.hosts[host]
	p.mu.RUnlock()
	if exists {
		return hp
	}

	// Slow path: create new
	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check
	if hp, exists := p.hosts[host]; exists {
		return hp
	}

	hp = &hostPool{
		host: host,
		idle: make([]*Conn, 0, p.opts.MaxIdlePerHost),
		sem:  make(chan struct{}, p.opts.MaxConnsPerHost),
	}
	p.hosts[host] = hp

	logger.Debug().Str("host", host).Msg("created new host pool")
	return hp
}

// takeIdle pops the most recently used idle connection, closing any that
// have been idle longer than timeout. The caller unparks it outside hp.mu.
func (hp *hostPool) takeIdle(timeout time.Duration) *Conn {
	hp.mu.Lock()
	defer hp.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	fresh := hp.idle[:0]
	for _, c := range hp.idle {
		if c.Closed() {
			continue
		}
		if c.idleSince.Before(cutoff) {
			c.Close()
			continue
		}
		fresh = append(fresh, c)
	}
	clear(hp.idle[len(fresh):])
	hp.idle = fresh

	if len(hp.idle) == 0 {
		return nil
	}
	c := hp.idle[len(hp.idle)-1]
	hp.idle[len(hp.idle)-1] = nil
	hp.idle = hp.idle[:len(hp.idle)-1]
	return c
}

// close closes all idle connections in the host pool
func (hp *hostPool) close() error {
	hp.mu.Lock()
	defer hp.mu.Unlock()

	var errs []error
	for _, c := range hp.idle {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	hp.idle = nil
	return errors.Join(errs...)
}
