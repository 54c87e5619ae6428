package coordinator

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/account"
	"ciphera/internal/protocol/ratchet"
)

// memStore is a minimal in-memory domain.SessionStore for exercising the
// coordinator without touching disk.
type memStore struct {
	mu    sync.Mutex
	saved map[domain.Username]domain.Session
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[domain.Username]domain.Session)}
}

func (m *memStore) Load(_ context.Context, peer domain.Username) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[peer]
	if !ok {
		return nil, &domain.NoSessionError{Peer: peer}
	}
	out := s
	return &out, nil
}

func (m *memStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[s.Peer] = *s
	return nil
}

func (m *memStore) Delete(_ context.Context, peer domain.Username) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, peer)
	return nil
}

var _ domain.SessionStore = (*memStore)(nil)

func pairedSessions(t *testing.T) (a, b *domain.Session) {
	t.Helper()
	acctA, err := account.Create("alice")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	acctB, err := account.Create("bob")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	bundleB := account.Bundle(acctB)

	sessA, req, err := ratchet.Initiate(acctA.Name, acctA.Identity.IKXPriv, acctA.Identity.IKXPub, bundleB)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	sessB, err := ratchet.Accept(acctB, req)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return sessA, sessB
}

// TestCoordinatorSendReceivePersists exercises one message end-to-end
// through two coordinators and checks the session was persisted after
// each operation (spec §4.8: persist after every successful send/receive).
func TestCoordinatorSendReceivePersists(t *testing.T) {
	sessA, sessB := pairedSessions(t)

	storeA := newMemStore()
	storeB := newMemStore()
	coordA := New(sessA, storeA)
	coordB := New(sessB, storeB)
	defer coordA.Close()
	defer coordB.Close()

	ctx := context.Background()
	rec, err := coordA.Send(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := storeA.Load(ctx, sessA.Peer); err != nil {
		t.Fatalf("expected session persisted after send: %v", err)
	}

	pt, err := coordB.Receive(ctx, rec)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(pt, []byte("hello")) {
		t.Fatalf("got plaintext %q, want %q", pt, "hello")
	}
	persisted, err := storeB.Load(ctx, sessB.Peer)
	if err != nil {
		t.Fatalf("expected session persisted after receive: %v", err)
	}
	if persisted.RecvKey != sessB.RecvKey {
		t.Fatalf("persisted recv key does not match in-memory session state")
	}
}

// TestCoordinatorSerializesConcurrentSends fires many concurrent Send calls
// at one coordinator and checks send_count advanced exactly once per call
// (spec §5: send/receive on one session are mutually exclusive).
func TestCoordinatorSerializesConcurrentSends(t *testing.T) {
	sessA, _ := pairedSessions(t)
	coordA := New(sessA, newMemStore())
	defer coordA.Close()

	const n = 4 // below MaxTimeUpdate so every send stays type-0 and send_count increments by exactly 1
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := coordA.Send(ctx, []byte("x")); err != nil {
				t.Errorf("Send: %v", err)
			}
		}()
	}
	wg.Wait()

	if sessA.SendCount != n {
		t.Fatalf("send_count = %d, want %d (races would lose increments without serialization)", sessA.SendCount, n)
	}
}

func TestCoordinatorClosedRejectsFurtherWork(t *testing.T) {
	sessA, _ := pairedSessions(t)
	coordA := New(sessA, newMemStore())
	coordA.Close()
	coordA.Close() // idempotent

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := coordA.Send(ctx, []byte("x")); err == nil {
		t.Fatalf("expected an error sending on a cancelled context to a closed coordinator")
	}
}
