package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SaltBytes is the salt length used by DeriveKEK.
const SaltBytes = 16

// DeriveKEK derives a key-encryption key from a passphrase and salt using
// Argon2id. Used to protect local identity/session state at rest; never
// used on the wire, where spec §4.1 mandates AES-256-GCM specifically.
func DeriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1<<16, 8, 1, chacha20poly1305.KeySize)
}

// EncryptSecret encrypts plaintext with a KEK derived from passphrase and salt.
func EncryptSecret(passphrase string, plaintext, salt []byte) (nonce, ciphertext []byte, err error) {
	if len(salt) != SaltBytes {
		return nil, nil, fmt.Errorf("crypto: invalid salt size %d", len(salt))
	}
	kek := DeriveKEK(passphrase, salt)
	defer Wipe(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// DecryptSecret decrypts a ciphertext with a KEK derived from passphrase and salt.
func DecryptSecret(passphrase string, salt, nonce, ciphertext []byte) ([]byte, error) {
	if len(salt) != SaltBytes {
		return nil, fmt.Errorf("crypto: invalid salt size %d", len(salt))
	}
	kek := DeriveKEK(passphrase, salt)
	defer Wipe(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}
