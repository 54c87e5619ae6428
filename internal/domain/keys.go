// Package domain defines the core data model and the interfaces that bind
// the cryptographic core to its external collaborators (storage and the
// directory/mailbox server). It holds plain types and contracts only.
package domain

import "fmt"

// X25519Public is a Curve25519 Diffie-Hellman public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 Diffie-Hellman private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// ChainKey is a 32-byte symmetric chain key, the node from which a message
// key or the next chain key is derived by hkdf_chain_step.
type ChainKey [32]byte

// Slice returns the key as a []byte.
func (c ChainKey) Slice() []byte { return c[:] }

// MustX25519Public converts a 32-byte slice into an X25519Public, panicking
// on a length mismatch. Used only where the length was already validated by
// a framer or store format check.
func MustX25519Public(b []byte) X25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("domain: X25519 public key must be 32 bytes, got %d", len(b)))
	}
	var out X25519Public
	copy(out[:], b)
	return out
}

// MustX25519Private converts a 32-byte slice into an X25519Private.
func MustX25519Private(b []byte) X25519Private {
	if len(b) != 32 {
		panic(fmt.Errorf("domain: X25519 private key must be 32 bytes, got %d", len(b)))
	}
	var out X25519Private
	copy(out[:], b)
	return out
}

// MustEd25519Public converts a 32-byte slice into an Ed25519Public.
func MustEd25519Public(b []byte) Ed25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("domain: Ed25519 public key must be 32 bytes, got %d", len(b)))
	}
	var out Ed25519Public
	copy(out[:], b)
	return out
}

// MustEd25519Private converts a 64-byte slice into an Ed25519Private.
func MustEd25519Private(b []byte) Ed25519Private {
	if len(b) != 64 {
		panic(fmt.Errorf("domain: Ed25519 private key must be 64 bytes, got %d", len(b)))
	}
	var out Ed25519Private
	copy(out[:], b)
	return out
}

// ParseX25519Public converts a byte slice into an X25519Public, returning
// ErrMalformedRecord on a length mismatch instead of panicking. Used
// wherever the bytes come from an untrusted external source, such as a
// directory server response.
func ParseX25519Public(b []byte) (X25519Public, error) {
	var out X25519Public
	if len(b) != 32 {
		return out, fmt.Errorf("%w: X25519 public key must be 32 bytes, got %d", ErrMalformedRecord, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseEd25519Public converts a byte slice into an Ed25519Public, returning
// ErrMalformedRecord on a length mismatch instead of panicking. Used
// wherever the bytes come from an untrusted external source, such as a
// directory server response.
func ParseEd25519Public(b []byte) (Ed25519Public, error) {
	var out Ed25519Public
	if len(b) != 32 {
		return out, fmt.Errorf("%w: Ed25519 public key must be 32 bytes, got %d", ErrMalformedRecord, len(b))
	}
	copy(out[:], b)
	return out, nil
}
