package coordinator

import (
	"context"
	"sync"

	"ciphera/internal/domain"
)

// Pool holds the one running Coordinator per peer, so the rest of the
// application never reaches for a session directly. Distinct peers'
// coordinators run independently and never block one another (spec §5).
type Pool struct {
	mu     sync.Mutex
	store  domain.SessionStore
	active map[domain.Username]*Coordinator
}

// NewPool returns a Pool that persists every session it manages through
// store.
func NewPool(store domain.SessionStore) *Pool {
	return &Pool{store: store, active: make(map[domain.Username]*Coordinator)}
}

// Adopt registers a freshly created session (from ratchet.Initiate or
// ratchet.Accept) and starts its coordinator, replacing any coordinator
// already running for that peer.
func (p *Pool) Adopt(sess *domain.Session) *Coordinator {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.active[sess.Peer]; ok {
		existing.Close()
	}
	c := New(sess, p.store)
	p.active[sess.Peer] = c
	return c
}

// Get returns the running coordinator for peer, loading its session from
// the store and starting a coordinator for it if none is active yet.
func (p *Pool) Get(ctx context.Context, peer domain.Username) (*Coordinator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.active[peer]; ok {
		return c, nil
	}
	sess, err := p.store.Load(ctx, peer)
	if err != nil {
		return nil, err
	}
	c := New(sess, p.store)
	p.active[peer] = c
	return c, nil
}

// Drop closes and forgets the coordinator for peer, if any; it does not
// delete the persisted session.
func (p *Pool) Drop(peer domain.Username) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.active[peer]; ok {
		c.Close()
		delete(p.active, peer)
	}
}

// CloseAll stops every running coordinator. Call before process exit.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for peer, c := range p.active {
		c.Close()
		delete(p.active, peer)
	}
}
