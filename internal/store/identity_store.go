package store

import (
	"context"
	"encoding/json"
	"fmt"
	"crypto/rand"
	"os"
	"path/filepath"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const identityFormatVersion = 1

// identityBlob is the on-disk JSON envelope around an encrypted domain.Account.
type identityBlob struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Cipher  []byte `json:"cipher"`
}

// FileIdentityStore implements domain.IdentityStore against a single
// passphrase-encrypted file per account home directory.
type FileIdentityStore struct {
	home       string
	passphrase string
}

// NewFileIdentityStore returns a store rooted at home, encrypting with
// passphrase.
func NewFileIdentityStore(home, passphrase string) *FileIdentityStore {
	return &FileIdentityStore{home: home, passphrase: passphrase}
}

var _ domain.IdentityStore = (*FileIdentityStore)(nil)

func (s *FileIdentityStore) path() string {
	return filepath.Join(s.home, "identity.json")
}

func (s *FileIdentityStore) Load(_ context.Context) (*domain.Account, error) {
	var blob identityBlob
	ok, err := readJSON(s.path(), &blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	if !ok {
		return nil, os.ErrNotExist
	}
	if blob.Version != identityFormatVersion {
		return nil, fmt.Errorf("%w: unsupported identity format version %d", domain.ErrPersistFailure, blob.Version)
	}

	plaintext, err := crypto.DecryptSecret(s.passphrase, blob.Salt, blob.Nonce, blob.Cipher)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupted identity", domain.ErrPersistFailure)
	}
	defer crypto.Wipe(plaintext)

	var acct domain.Account
	if err := json.Unmarshal(plaintext, &acct); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	return &acct, nil
}

func (s *FileIdentityStore) Save(_ context.Context, acct *domain.Account) error {
	plaintext, err := json.Marshal(acct)
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

	blob := identityBlob{Version: identityFormatVersion, Salt: salt, Nonce: nonce, Cipher: ciphertext}
	if err := writeJSON(s.path(), blob, 0o600); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailure, err)
	}
	return nil
}
