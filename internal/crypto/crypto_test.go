package crypto

import (
	"bytes"
	"testing"
)

func TestX25519DHAgrees(t *testing.T) {
	aPriv, aPub, err := GenerateX25519()
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	bPriv, bPub, err := GenerateX25519()
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}
	sharedA, err := DH(aPriv, bPub)
	if err != nil {
		t.Fatalf("DH a->b: %v", err)
	}
	sharedB, err := DH(bPriv, aPub)
	if err != nil {
		t.Fatalf("DH b->a: %v", err)
	}
	if sharedA != sharedB {
		t.Fatalf("shared secrets disagree: %x != %x", sharedA, sharedB)
	}
}

func TestEd25519SignVerify(t *testing.T) {
	priv, pub, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("signed prekey bytes")
	sig := SignEd25519(priv, msg)
	if !VerifyEd25519(pub, msg, sig) {
		t.Fatal("valid signature failed to verify")
	}
	if VerifyEd25519(pub, []byte("tampered"), sig) {
		t.Fatal("verification succeeded over the wrong message")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x42}, 32)
	out1, err := HKDF([]byte("salt"), ikm, []byte("info"), 64)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	out2, err := HKDF([]byte("salt"), ikm, []byte("info"), 64)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatal("HKDF output not deterministic for identical inputs")
	}
	out3, _ := HKDF([]byte("salt"), ikm, []byte("other-info"), 64)
	if bytes.Equal(out1, out3) {
		t.Fatal("HKDF output identical for different info labels")
	}
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	var key [KeySize]byte
	copy(key[:], bytes.Repeat([]byte{0x07}, KeySize))
	aad := []byte("record-header")
	plaintext := []byte("hello across the ratchet")

	nonce, ciphertext, err := Seal(key, aad, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := Open(key, nonce, aad, ciphertext)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}

	if _, err := Open(key, nonce, []byte("wrong-aad"), ciphertext); err == nil {
		t.Fatal("open succeeded with tampered aad")
	}
}
