package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// AEADNonceSize is the GCM nonce length mandated by spec §4.1.
const AEADNonceSize = 12

// Seal encrypts plaintext under key with AES-256-GCM, authenticating aad,
// and returns a freshly generated nonce alongside the ciphertext-with-tag.
func Seal(key [KeySize]byte, aad, plaintext []byte) (nonce [AEADNonceSize]byte, ciphertext []byte, err error) {
	if _, err = rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("aead: generate nonce: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nonce, nil, err
	}
	ciphertext = gcm.Seal(nil, nonce[:], plaintext, aad)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext (which must include the GCM tag) under key and
// nonce, authenticating aad.
func Open(key [KeySize]byte, nonce [AEADNonceSize]byte, aad, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("aead: open: %w", err)
	}
	return plaintext, nil
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aead: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: new gcm: %w", err)
	}
	return gcm, nil
}
