package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vidingest/internal/hasher"
)

// Pool shares one connection per endpoint across staging workers. It is safe
// for concurrent use.
type Pool struct {
	dialer    Dialer
	endpoints map[string]Endpoint

	mu    sync.Mutex
	conns map[string]Conn
}

// NewPool returns a pool over the given endpoints, keyed by endpoint name.
func NewPool(dialer Dialer, endpoints ...Endpoint) *Pool {
	if dialer == nil {
		dialer = SSHDialer{}
	}
	byName := make(map[string]Endpoint, len(endpoints))
	for _, ep := range endpoints {
		byName[ep.Name] = ep
	}
	return &Pool{dialer: dialer, endpoints: byName, conns: make(map[string]Conn)}
}

// Has reports whether name is a known remote endpoint.
func (p *Pool) Has(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.endpoints[name]
	return ok
}

// Open reads path on the named endpoint over SFTP, dialing on first use.
func (p *Pool) Open(ctx context.Context, name, path string) (hasher.File, error) {
	endpoint, ok := p.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("unknown remote endpoint %q", name)
	}
	conn, err := p.conn(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return conn.Open(SFTPPath(endpoint.Platform, path))
}

func (p *Pool) conn(ctx context.Context, endpoint Endpoint) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[endpoint.Name]; ok {
		return conn, nil
	}
	conn, err := p.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint.Name, err)
	}
	p.conns[endpoint.Name] = conn
	return conn, nil
}

// Close closes every open connection.
func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(p.conns, name)
	}
	return errors.Join(errs...)
}
