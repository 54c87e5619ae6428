// Package account implements account key-material generation (spec §4.2):
// identity, signed prekey, and the one-time prekey pool.
package account

import (
	"fmt"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// Create generates a fresh Account for name: an Ed25519+X25519 identity, a
// signed prekey, and domain.MaxOneTimePreKeys one-time prekeys with ids
// 1..N. It does not touch storage or the directory; the caller persists
// the result and publishes the public half.
func Create(name domain.Username) (*domain.Account, error) {
	ikEdPriv, ikEdPub, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, fmt.Errorf("account: %w: identity signing key: %v", domain.ErrRngFailure, err)
	}
	ikXPriv, ikXPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, fmt.Errorf("account: %w: identity DH key: %v", domain.ErrRngFailure, err)
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, fmt.Errorf("account: %w: signed prekey: %v", domain.ErrRngFailure, err)
	}
	spkSig := crypto.SignEd25519(ikEdPriv, spkPub.Slice())

	opks := make([]domain.OneTimePreKeyPair, 0, domain.MaxOneTimePreKeys)
	for id := uint32(1); id <= domain.MaxOneTimePreKeys; id++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, fmt.Errorf("account: %w: one-time prekey %d: %v", domain.ErrRngFailure, id, err)
		}
		opks = append(opks, domain.OneTimePreKeyPair{ID: id, Priv: priv, Pub: pub})
	}

	return &domain.Account{
		Name: name,
		Identity: domain.Identity{
			IKEdPriv: ikEdPriv,
			IKEdPub:  ikEdPub,
			IKXPriv:  ikXPriv,
			IKXPub:   ikXPub,
		},
		SPK:  domain.SignedPreKey{Priv: spkPriv, Pub: spkPub, Sig: spkSig},
		OPKs: opks,
	}, nil
}

// Bundle extracts the public bundle to publish to the directory on
// account creation (spec §4.2 step 4) — it carries only the first OPK in
// a.OPKs, matching the one-OPK-per-fetch shape the directory itself
// returns on /session/. The remaining OPKs are not part of the bundle.
func Bundle(a *domain.Account) domain.PreKeyBundle {
	b := domain.PreKeyBundle{
		Name:    a.Name,
		IKPub:   a.Identity.IKXPub,
		SPKPub:  a.SPK.Pub,
		SPKSig:  a.SPK.Sig,
		IKEdPub: a.Identity.IKEdPub,
	}
	if len(a.OPKs) > 0 {
		b.OPKPub = a.OPKs[0].Pub
		b.OPKID = a.OPKs[0].ID
		b.HasOPK = true
	}
	return b
}
