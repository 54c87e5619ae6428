package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"ciphera/internal/coordinator"
	"ciphera/internal/domain"
	"ciphera/internal/framer"
	"ciphera/internal/protocol/account"
	"ciphera/internal/protocol/ratchet"
	"ciphera/internal/relay"
	"ciphera/internal/store"
)

// DecryptedMessage is one plaintext recovered from a peer's mailbox.
type DecryptedMessage struct {
	From      domain.Username
	Plaintext []byte
	Timestamp int64
}

// Manager is the single coordinator-owning entry point the CLI drives: it
// builds stores and the directory client from Config, and exposes one
// method per operation spec §2's data-flow describes (account creation,
// session initiation/acceptance, send, receive).
type Manager struct {
	home      string
	directory domain.Directory

	mu   sync.Mutex
	pool *coordinator.Pool // lazily built against the first passphrase seen
}

// NewManager builds a Manager from cfg.
func NewManager(cfg Config) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Manager{
		home:      cfg.Home,
		directory: relay.NewHTTPClient(cfg.RelayURL, httpClient),
	}
}

func (m *Manager) identityStore(passphrase string) domain.IdentityStore {
	return store.NewFileIdentityStore(m.home, passphrase)
}

// sessionPool returns the Coordinator pool, building it against passphrase
// the first time it is needed. A Manager serves one local identity per
// process, so the passphrase is stable across calls within a run.
func (m *Manager) sessionPool(passphrase string) *coordinator.Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		sessStore := store.NewFileSessionStore(filepath.Join(m.home, "sessions"), passphrase)
		m.pool = coordinator.NewPool(sessStore)
	}
	return m.pool
}

// Close stops every running session coordinator. Call before process exit.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.CloseAll()
	}
}

// CreateIdentity generates a fresh Account for name (spec §4.2 steps 1-3)
// and persists it encrypted under passphrase. It does not publish to the
// directory; call Register for that.
func (m *Manager) CreateIdentity(ctx context.Context, passphrase string, name domain.Username) (*domain.Account, error) {
	acct, err := account.Create(name)
	if err != nil {
		return nil, err
	}
	if err := m.identityStore(passphrase).Save(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// LoadIdentity loads the local account, unlocking it with passphrase.
func (m *Manager) LoadIdentity(ctx context.Context, passphrase string) (*domain.Account, error) {
	return m.identityStore(passphrase).Load(ctx)
}

// Register publishes the local account's public bundle to the directory
// (spec §4.2 step 4).
func (m *Manager) Register(ctx context.Context, passphrase string) (*domain.Account, error) {
	acct, err := m.LoadIdentity(ctx, passphrase)
	if err != nil {
		return nil, err
	}
	bundle := account.Bundle(acct)
	if err := m.directory.CreateAccount(ctx, bundle); err != nil {
		return nil, err
	}
	return acct, nil
}

// StartSession runs the initiator side of X3DH against peer's published
// bundle and posts the session-initiation record (spec §4.3, initiator).
func (m *Manager) StartSession(ctx context.Context, passphrase string, peer domain.Username) error {
	acct, err := m.LoadIdentity(ctx, passphrase)
	if err != nil {
		return err
	}
	bundle, err := m.directory.FetchBundle(ctx, peer)
	if err != nil {
		return err
	}

	sess, req, err := ratchet.Initiate(acct.Name, acct.Identity.IKXPriv, acct.Identity.IKXPub, bundle)
	if err != nil {
		return err
	}

	pool := m.sessionPool(passphrase)
	coord := pool.Adopt(sess)
	if err := coord.Persist(ctx); err != nil {
		return err
	}
	if err := m.directory.PublishSession(ctx, req); err != nil {
		return err
	}
	return nil
}

// AcceptPendingSessions drains every pending session-initiation request
// addressed to the local account, running the responder side of X3DH for
// each (spec §4.3, responder). It returns the peers it accepted.
func (m *Manager) AcceptPendingSessions(ctx context.Context, passphrase string) ([]domain.Username, error) {
	acct, err := m.LoadIdentity(ctx, passphrase)
	if err != nil {
		return nil, err
	}
	initiators, err := m.directory.ListSessions(ctx, acct.Name)
	if err != nil {
		return nil, err
	}

	pool := m.sessionPool(passphrase)
	accepted := make([]domain.Username, 0, len(initiators))
	for _, initiator := range initiators {
		req, err := m.directory.GetSession(ctx, acct.Name, initiator)
		if err != nil {
			return accepted, fmt.Errorf("accepting session from %q: %w", initiator, err)
		}
		sess, err := ratchet.Accept(acct, req)
		if err != nil {
			return accepted, fmt.Errorf("accepting session from %q: %w", initiator, err)
		}
		coord := pool.Adopt(sess)
		if err := coord.Persist(ctx); err != nil {
			return accepted, err
		}
		accepted = append(accepted, initiator)
	}
	return accepted, nil
}

// SendMessage encrypts plaintext for peer through its session coordinator
// and posts the resulting record to the directory's mailbox (spec §4.5-6).
func (m *Manager) SendMessage(ctx context.Context, passphrase string, peer domain.Username, plaintext []byte) error {
	acct, err := m.LoadIdentity(ctx, passphrase)
	if err != nil {
		return err
	}
	coord, err := m.sessionPool(passphrase).Get(ctx, peer)
	if err != nil {
		return err
	}
	rec, err := coord.Send(ctx, plaintext)
	if err != nil {
		return err
	}
	return m.directory.PostMessage(ctx, acct.Name, peer, framer.EncodeHex(rec))
}

// ReceiveMessages drains the local account's mailbox and decrypts every
// message through its sender's session coordinator, in arrival order
// (spec §4.6, spec §5 ordering guarantees). The first message that fails to
// decode, has no session with its sender, or fails to decrypt stops the
// batch: the messages decrypted before it are returned with the error, and
// the rest of the drained mailbox is not returned.
func (m *Manager) ReceiveMessages(ctx context.Context, passphrase string) ([]DecryptedMessage, error) {
	acct, err := m.LoadIdentity(ctx, passphrase)
	if err != nil {
		return nil, err
	}
	inbox, err := m.directory.PollMessages(ctx, acct.Name)
	if err != nil {
		return nil, err
	}

	pool := m.sessionPool(passphrase)
	out := make([]DecryptedMessage, 0, len(inbox))
	for _, msg := range inbox {
		rec, err := framer.DecodeHex(msg.Message)
		if err != nil {
			return out, fmt.Errorf("message from %q: %w", msg.Account, err)
		}
		coord, err := pool.Get(ctx, msg.Account)
		if err != nil {
			return out, fmt.Errorf("message from %q: %w", msg.Account, err)
		}
		pt, err := coord.Receive(ctx, rec)
		if err != nil {
			return out, fmt.Errorf("message from %q: %w", msg.Account, err)
		}
		out = append(out, DecryptedMessage{From: msg.Account, Plaintext: pt, Timestamp: msg.Timestamp})
	}
	return out, nil
}
