package domain

// Username is an opaque UTF-8 account identifier, unique in the directory.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Identity holds an account's long-lived key material: an Ed25519 identity
// used for signing the signed prekey, and a separately generated X25519
// identity used for Diffie-Hellman. Both are published; see SPEC_FULL.md §9
// for why this repository does not reproduce the source's single-identity
// ambiguity.
type Identity struct {
	IKEdPriv Ed25519Private
	IKEdPub  Ed25519Public
	IKXPriv  X25519Private
	IKXPub   X25519Public
}

// SignedPreKey is a medium-term X25519 keypair signed by the account's
// Ed25519 identity.
type SignedPreKey struct {
	Priv X25519Private
	Pub  X25519Public
	Sig  []byte
}

// OneTimePreKeyPair is a single-use X25519 keypair with a small integer id.
type OneTimePreKeyPair struct {
	ID   uint32
	Priv X25519Private
	Pub  X25519Public
}

// OneTimePreKeyPublic is the public half of an OneTimePreKeyPair, as
// published in a bundle.
type OneTimePreKeyPublic struct {
	ID  uint32
	Pub X25519Public
}

// MaxOneTimePreKeys is the number of one-time prekeys an account generates
// at creation time (spec §3).
const MaxOneTimePreKeys = 100

// Account is the full local record of an account's long-lived key material.
// Private halves never leave the device.
type Account struct {
	Name     Username
	Identity Identity
	SPK      SignedPreKey
	OPKs     []OneTimePreKeyPair
}

// FindOPK returns the private one-time prekey pair with the given id, if
// still present locally (it is retained even after the server has consumed
// the public half, so a responder can re-accept a stale request).
func (a *Account) FindOPK(id uint32) (OneTimePreKeyPair, bool) {
	for _, opk := range a.OPKs {
		if opk.ID == id {
			return opk, true
		}
	}
	return OneTimePreKeyPair{}, false
}

// PreKeyBundle is the wire form of an account's public key material, as
// published to and served by the directory.
type PreKeyBundle struct {
	Name    Username
	IKPub   X25519Public
	SPKPub  X25519Public
	SPKSig  []byte
	OPKPub  X25519Public
	OPKID   uint32
	HasOPK  bool
	IKEdPub Ed25519Public
}
