package domain

// RecordType is the single-byte tag at the front of every message record.
type RecordType byte

const (
	// RecordPlain is a chain-advance-only message: no DH ratchet step.
	RecordPlain RecordType = '0'
	// RecordPassiveUpdate acknowledges a peer-initiated ratchet; it carries
	// the sender's ratchet public so the peer can confirm.
	RecordPassiveUpdate RecordType = '1'
	// RecordInitiativeUpdate is a unilateral DH ratchet advance, typically
	// because send_count reached MaxTimeUpdate.
	RecordInitiativeUpdate RecordType = '2'
)

// NonceSize is the AES-256-GCM nonce length used throughout (spec §4.1).
const NonceSize = 12

// Record is the parsed form of a wire message record: a type tag, an
// optional new ratchet public (present iff Type != RecordPlain), a nonce,
// and ciphertext-with-tag. Encoding is purely positional; hex is applied
// only for transport (spec §4.7).
type Record struct {
	Type          RecordType
	NewRatchetPub X25519Public // zero value unless Type != RecordPlain
	Nonce         [NonceSize]byte
	Ciphertext    []byte // includes the GCM tag
}

// SessionRequest is the X3DH session-initiation record an initiator posts
// to the directory's /create/session/ endpoint, and a responder later
// consumes via /get/session/.
type SessionRequest struct {
	Account Username
	Target  Username
	IKPub   X25519Public
	EKPub   X25519Public
	OPKID   uint32
}

// MailboxMessage is one entry of a peer's mailbox: a hex-encoded Record
// plus routing/timestamp metadata, as returned by /message/.
type MailboxMessage struct {
	Account   Username
	Target    Username
	Message   string // hex-encoded Record
	Timestamp int64  // seconds since epoch
}
