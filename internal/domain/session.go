package domain

// MaxTimeUpdate is the send_count threshold at which the sender switches to
// an initiative-update (type 2) ratchet advance instead of a plain message.
const MaxTimeUpdate = 5

// MaxSkippedChainKeys bounds the retained skipped-key list (spec §9): oldest
// entries are evicted once the list would grow past this size.
const MaxSkippedChainKeys = 32

// SkippedChainKey is a chain key retained from before the local ratchet
// advanced, kept so a message sent under it but delivered late can still be
// decrypted.
type SkippedChainKey struct {
	Key ChainKey
}

// Session is the per-peer double-ratchet state described in spec §3. It is
// created by Initiate or Accept or loaded from a SessionStore, mutated only
// by Send and Receive, and is owned
// by exactly one coordinator goroutine at a time (§5).
type Session struct {
	Peer Username

	RootKey ChainKey
	SendKey ChainKey
	RecvKey ChainKey

	RatchetPriv X25519Private
	RatchetPub  X25519Public
	LastPeerPub X25519Public

	SendCount uint64
	NeedsAck  bool

	// Reverse resolves the role asymmetry between the two HKDF outputs of
	// dh_ratchet: false labels them (recv, send) for the initiator, true
	// swaps them for the responder. Purely local; never transmitted.
	Reverse bool

	// Skipped retains chain keys from before the local ratchet most recently
	// advanced, oldest first, capped at MaxSkippedChainKeys.
	Skipped []SkippedChainKey
}

// PushSkipped appends a retained chain key, evicting the oldest entry if the
// list is already at capacity.
func (s *Session) PushSkipped(ck ChainKey) {
	if len(s.Skipped) >= MaxSkippedChainKeys {
		s.Skipped = s.Skipped[1:]
	}
	s.Skipped = append(s.Skipped, SkippedChainKey{Key: ck})
}

// ClearSkipped drops all retained chain keys; called when the session sends
// its passive-update acknowledgement. Receiving an acknowledgement does not
// clear the list.
func (s *Session) ClearSkipped() {
	s.Skipped = nil
}
