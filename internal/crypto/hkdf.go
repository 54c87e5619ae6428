package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF runs RFC5869 HKDF-SHA-256 over ikm with the given salt and info
// label, filling outLen bytes. Each call runs its own extract step, so
// expanding one (salt, ikm) pair under two labels means two calls.
func HKDF(salt, ikm, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf: expand: %w", err)
	}
	return out, nil
}

// HKDFExtract runs the RFC5869 extract step alone, returning a 32-byte PRK.
// Used by the ratchet's dh_ratchet, which expands the same PRK under two
// different info labels (spec §4.4).
func HKDFExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// HKDFExpand runs the RFC5869 expand step alone against an existing PRK.
func HKDFExpand(prk, info []byte, outLen int) ([]byte, error) {
	r := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf: expand: %w", err)
	}
	return out, nil
}
