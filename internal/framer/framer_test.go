package framer

import (
	"bytes"
	"testing"

	"ciphera/internal/domain"
)

func TestRoundTripPlain(t *testing.T) {
	rec := domain.Record{
		Type:       domain.RecordPlain,
		Ciphertext: []byte("0123456789abcdef0123456789abcdef"),
	}
	copy(rec.Nonce[:], []byte("123456789012"))

	encoded := Encode(rec)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != rec.Type || decoded.Nonce != rec.Nonce || !bytes.Equal(decoded.Ciphertext, rec.Ciphertext) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, rec)
	}
}

func TestRoundTripUpdate(t *testing.T) {
	rec := domain.Record{
		Type:          domain.RecordInitiativeUpdate,
		NewRatchetPub: domain.MustX25519Public(bytes.Repeat([]byte{0x09}, 32)),
		Ciphertext:    []byte("ciphertext-with-tag-bytes-here!!"),
	}
	copy(rec.Nonce[:], []byte("abcdefghijkl"))

	hexEncoded := EncodeHex(rec)
	decoded, err := DecodeHex(hexEncoded)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	if decoded.Type != rec.Type || decoded.NewRatchetPub != rec.NewRatchetPub || decoded.Nonce != rec.Nonce {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, rec)
	}
	if !bytes.Equal(decoded.Ciphertext, rec.Ciphertext) {
		t.Fatalf("ciphertext mismatch: got %q want %q", decoded.Ciphertext, rec.Ciphertext)
	}
}

func TestDecodeRejectsShortPlainRecord(t *testing.T) {
	buf := []byte{byte(domain.RecordPlain)}
	buf = append(buf, make([]byte, domain.NonceSize+15)...) // one byte short of the 16-byte tag
	if _, err := Decode(buf); err != domain.ErrMalformedRecord {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestDecodeRejectsShortUpdateRecord(t *testing.T) {
	buf := []byte{byte(domain.RecordInitiativeUpdate)}
	buf = append(buf, make([]byte, 32+domain.NonceSize)...) // no tag at all
	if _, err := Decode(buf); err != domain.ErrMalformedRecord {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	buf := []byte{'9'}
	buf = append(buf, make([]byte, 64)...)
	if _, err := Decode(buf); err != domain.ErrMalformedRecord {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestDecodeRejectsEmptyBuffer(t *testing.T) {
	if _, err := Decode(nil); err != domain.ErrMalformedRecord {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}
