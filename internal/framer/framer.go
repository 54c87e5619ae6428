// Package framer encodes and decodes the on-the-wire message record: a
// type tag, an optional new ratchet public, an AEAD nonce, and
// ciphertext-with-tag. Encoding is purely positional bytes; hex is applied
// only at the transport boundary (spec §4.7).
package framer

import (
	"encoding/hex"
	"fmt"

	"ciphera/internal/domain"
)

const (
	minLenPlain  = 1 + domain.NonceSize + 16
	minLenUpdate = 1 + 32 + domain.NonceSize + 16
)

// Encode serializes rec to its positional byte form.
func Encode(rec domain.Record) []byte {
	out := make([]byte, 0, 1+32+domain.NonceSize+len(rec.Ciphertext))
	out = append(out, byte(rec.Type))
	if rec.Type != domain.RecordPlain {
		out = append(out, rec.NewRatchetPub.Slice()...)
	}
	out = append(out, rec.Nonce[:]...)
	out = append(out, rec.Ciphertext...)
	return out
}

// Decode parses the positional byte form produced by Encode, rejecting any
// buffer shorter than the minimum for its declared type.
func Decode(buf []byte) (domain.Record, error) {
	if len(buf) < 1 {
		return domain.Record{}, domain.ErrMalformedRecord
	}
	typ := domain.RecordType(buf[0])
	switch typ {
	case domain.RecordPlain:
		if len(buf) < minLenPlain {
			return domain.Record{}, domain.ErrMalformedRecord
		}
		rec := domain.Record{Type: typ}
		copy(rec.Nonce[:], buf[1:1+domain.NonceSize])
		rec.Ciphertext = append([]byte(nil), buf[1+domain.NonceSize:]...)
		return rec, nil
	case domain.RecordPassiveUpdate, domain.RecordInitiativeUpdate:
		if len(buf) < minLenUpdate {
			return domain.Record{}, domain.ErrMalformedRecord
		}
		rec := domain.Record{Type: typ}
		rec.NewRatchetPub = domain.MustX25519Public(buf[1:33])
		copy(rec.Nonce[:], buf[33:33+domain.NonceSize])
		rec.Ciphertext = append([]byte(nil), buf[33+domain.NonceSize:]...)
		return rec, nil
	default:
		return domain.Record{}, domain.ErrMalformedRecord
	}
}

// EncodeHex encodes rec and hex-encodes the result for transport.
func EncodeHex(rec domain.Record) string {
	return hex.EncodeToString(Encode(rec))
}

// DecodeHex hex-decodes s and parses the resulting record.
func DecodeHex(s string) (domain.Record, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return domain.Record{}, fmt.Errorf("framer: %w: %v", domain.ErrMalformedRecord, err)
	}
	return Decode(buf)
}
