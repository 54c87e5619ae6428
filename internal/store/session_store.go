package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const sessionFormatVersion = 1

type sessionBlob struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Cipher  []byte `json:"cipher"`
}

// FileSessionStore implements domain.SessionStore: one encrypted, opaque
// file per peer, written atomically (spec §4.8).
type FileSessionStore struct {
	dir        string
	passphrase string
}

// NewFileSessionStore returns a store that keeps one file per peer under
// dir, encrypted with passphrase.
func NewFileSessionStore(dir, passphrase string) *FileSessionStore {
	return &FileSessionStore{dir: dir, passphrase: passphrase}
}

var _ domain.SessionStore = (*FileSessionStore)(nil)

func (s *FileSessionStore) path(peer domain.Username) string {
	return filepath.Join(s.dir, string(peer)+".session.json")
}

func (s *FileSessionStore) Load(_ context.Context, peer domain.Username) (*domain.Session, error) {
	var blob sessionBlob
	ok, err := readJSON(s.path(peer), &blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	if !ok {
		return nil, &domain.NoSessionError{Peer: peer}
	}
	if blob.Version != sessionFormatVersion {
		return nil, fmt.Errorf("%w: unsupported session format version %d", domain.ErrPersistFailure, blob.Version)
	}

	plaintext, err := crypto.DecryptSecret(s.passphrase, blob.Salt, blob.Nonce, blob.Cipher)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupted session", domain.ErrPersistFailure)
	}
	defer crypto.Wipe(plaintext)

	var sess domain.Session
	if err := json.Unmarshal(plaintext, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	return &sess, nil
}

func (s *FileSessionStore) Save(_ context.Context, sess *domain.Session) error {
	plaintext, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}

	salt := make([]byte, crypto.SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRngFailure, err)
	}
	nonce, ciphertext, err := crypto.EncryptSecret(s.passphrase, plaintext, salt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}

	blob := sessionBlob{Version: sessionFormatVersion, Salt: salt, Nonce: nonce, Cipher: ciphertext}
	if err := writeJSON(s.path(sess.Peer), blob, 0o600); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	return nil
}

func (s *FileSessionStore) Delete(_ context.Context, peer domain.Username) error {
	if err := os.Remove(s.path(peer)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	return nil
}
