// Package coordinator gives each session a single owner goroutine, per
// spec §9's "interior mutability" note: rather than guard a shared
// *domain.Session behind a mutex that a background refresh task and a UI
// thread both reach for, a Coordinator owns one session exclusively and
// serves typed commands (sendRequest, receivedRecord, persistTick) off a
// channel. send and receive on the same session are thus naturally
// mutually exclusive (spec §5); sessions with different peers run their
// own Coordinator goroutines and advance in parallel.
package coordinator

import (
	"context"
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
)

type sendRequest struct {
	ctx       context.Context
	plaintext []byte
	result    chan sendResult
}

type sendResult struct {
	rec domain.Record
	err error
}

type receivedRecord struct {
	ctx    context.Context
	record domain.Record
	result chan recvResult
}

type recvResult struct {
	plaintext []byte
	err       error
}

type persistTick struct {
	ctx    context.Context
	result chan error
}

// Coordinator owns one peer's *domain.Session and is the only goroutine
// that ever reads or mutates it.
type Coordinator struct {
	peer  domain.Username
	sess  *domain.Session
	store domain.SessionStore
	cmds  chan any
	done  chan struct{}
}

// New starts a Coordinator for sess, persisting through store after every
// successful send or receive (spec §4.8). The caller must eventually call
// Close.
func New(sess *domain.Session, store domain.SessionStore) *Coordinator {
	c := &Coordinator{
		peer:  sess.Peer,
		sess:  sess,
		store: store,
		cmds:  make(chan any),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Peer returns the username this coordinator's session is with.
func (c *Coordinator) Peer() domain.Username { return c.peer }

func (c *Coordinator) run() {
	for {
		select {
		case cmd := <-c.cmds:
			switch v := cmd.(type) {
			case sendRequest:
				rec, err := ratchet.Send(c.sess, v.plaintext)
				if err == nil {
					if perr := c.store.Save(v.ctx, c.sess); perr != nil {
						err = fmt.Errorf("%w: %v", domain.ErrPersistFailure, perr)
					}
				}
				v.result <- sendResult{rec: rec, err: err}
			case receivedRecord:
				pt, err := ratchet.Receive(c.sess, v.record)
				if err == nil {
					if perr := c.store.Save(v.ctx, c.sess); perr != nil {
						err = fmt.Errorf("%w: %v", domain.ErrPersistFailure, perr)
					}
				}
				v.result <- recvResult{plaintext: pt, err: err}
			case persistTick:
				v.result <- c.store.Save(v.ctx, c.sess)
			}
		case <-c.done:
			return
		}
	}
}

// Send advances the session's send path and produces the next outgoing
// record (spec §4.5), persisting the new state before returning. A
// ciphertext that was produced but whose downstream POST later fails is
// still safe to retry: the ratchet state is never rolled back (spec §5),
// so retrying means re-sending the already-sealed record, not re-sealing
// a fresh one under the same message key.
func (c *Coordinator) Send(ctx context.Context, plaintext []byte) (domain.Record, error) {
	result := make(chan sendResult, 1)
	select {
	case c.cmds <- sendRequest{ctx: ctx, plaintext: plaintext, result: result}:
	case <-ctx.Done():
		return domain.Record{}, ctx.Err()
	case <-c.done:
		return domain.Record{}, domain.ErrInvariantViolation
	}
	select {
	case r := <-result:
		return r.rec, r.err
	case <-ctx.Done():
		return domain.Record{}, ctx.Err()
	}
}

// Receive parses and decrypts an inbound record (spec §4.6), persisting
// the new state before returning.
func (c *Coordinator) Receive(ctx context.Context, rec domain.Record) ([]byte, error) {
	result := make(chan recvResult, 1)
	select {
	case c.cmds <- receivedRecord{ctx: ctx, record: rec, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, domain.ErrInvariantViolation
	}
	select {
	case r := <-result:
		return r.plaintext, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Persist forces an out-of-band save of the current state, e.g. from a
// periodic persist-tick independent of send/receive traffic.
func (c *Coordinator) Persist(ctx context.Context) error {
	result := make(chan error, 1)
	select {
	case c.cmds <- persistTick{ctx: ctx, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return domain.ErrInvariantViolation
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the coordinator's goroutine. Further calls to Send/Receive/
// Persist return domain.ErrInvariantViolation.
func (c *Coordinator) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
