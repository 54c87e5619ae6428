package domain

import "context"

// IdentityStore persists the single local account record, encrypted at
// rest under a passphrase-derived key.
type IdentityStore interface {
	Load(ctx context.Context) (*Account, error)
	Save(ctx context.Context, acct *Account) error
}

// SessionStore persists one Session per peer as an opaque encrypted blob,
// written atomically (temp file + rename) so a crash never leaves a
// partially-written file behind.
type SessionStore interface {
	Load(ctx context.Context, peer Username) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, peer Username) error
}

// Directory is the client-side contract for the directory/mailbox server
// described in spec §6. Every method is a single HTTP round trip and takes
// a context so the caller can bound or cancel it.
type Directory interface {
	// CreateAccount registers name with the server, publishing its initial
	// bundle. Returns a *DirectoryConflictError if name is taken.
	CreateAccount(ctx context.Context, bundle PreKeyBundle) error

	// SearchAccounts substring-matches query against registered account
	// names, excluding account itself (spec §6 /search/).
	SearchAccounts(ctx context.Context, account Username, query string) ([]Username, error)

	// FetchBundle fetches a one-time prekey bundle for target, consuming one
	// OPK atomically server-side (spec §6 /session/).
	FetchBundle(ctx context.Context, target Username) (PreKeyBundle, error)

	// PublishSession posts an X3DH session-initiation record for target to
	// pick up later (spec §6 /create/session/).
	PublishSession(ctx context.Context, req SessionRequest) error

	// ListSessions returns the usernames that have a pending session request
	// addressed to account.
	ListSessions(ctx context.Context, account Username) ([]Username, error)

	// GetSession fetches and consumes the pending session-initiation record
	// from initiator addressed to account.
	GetSession(ctx context.Context, account, initiator Username) (SessionRequest, error)

	// PostMessage appends a hex-encoded Record to target's mailbox from
	// account.
	PostMessage(ctx context.Context, account, target Username, hexRecord string) error

	// PollMessages drains and returns all messages queued for account.
	PollMessages(ctx context.Context, account Username) ([]MailboxMessage, error)
}
