// Package x3dh computes the extended triple Diffie-Hellman root key that
// seeds a new session, on both the initiator and responder side.
package x3dh

import (
	"fmt"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// rootKeyLabel is the sole HKDF info label used to derive root0 (spec §4.3
// step 4); it never changes regardless of which side computes it.
const rootKeyLabel = "X3DH-Root-Key"

// VerifySPK checks the identity's Ed25519 signature over a peer's signed
// prekey public. Spec §4.3 step 1: every session initiation verifies this,
// unconditionally, before any DH is computed.
func VerifySPK(ikEdPub domain.Ed25519Public, spkPub domain.X25519Public, sig []byte) error {
	if !crypto.VerifyEd25519(ikEdPub, spkPub.Slice(), sig) {
		return domain.ErrBadSignature
	}
	return nil
}

// InitiatorRoot computes root0 from the initiator's side: A holds IK_A_priv
// and a fresh EK_priv; B's bundle supplies IK_B, SPK_B, and OPK_B.
func InitiatorRoot(ikAPriv domain.X25519Private, ekPriv domain.X25519Private, ikB, spkB, opkB domain.X25519Public) (domain.ChainKey, error) {
	dh1, err := crypto.DH(ikAPriv, spkB)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH1: %w", err)
	}
	dh2, err := crypto.DH(ekPriv, ikB)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH2: %w", err)
	}
	dh3, err := crypto.DH(ekPriv, spkB)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH3: %w", err)
	}
	dh4, err := crypto.DH(ekPriv, opkB)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH4: %w", err)
	}
	return deriveRoot(dh1, dh2, dh3, dh4)
}

// ResponderRoot computes root0 from the responder's side, in the mirror DH
// order spec'd in §4.3 step 2: B holds SPK_B_priv, IK_B_priv, and the OPK
// priv the initiator's request named; A's request supplies IK_A and EK_A.
func ResponderRoot(spkBPriv, ikBPriv, opkBPriv domain.X25519Private, ikA, ekA domain.X25519Public) (domain.ChainKey, error) {
	dh1, err := crypto.DH(spkBPriv, ikA)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH1: %w", err)
	}
	dh2, err := crypto.DH(ikBPriv, ekA)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH2: %w", err)
	}
	dh3, err := crypto.DH(spkBPriv, ekA)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH3: %w", err)
	}
	dh4, err := crypto.DH(opkBPriv, ekA)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: DH4: %w", err)
	}
	return deriveRoot(dh1, dh2, dh3, dh4)
}

func deriveRoot(dh1, dh2, dh3, dh4 [32]byte) (domain.ChainKey, error) {
	ikm := make([]byte, 0, 128)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)
	ikm = append(ikm, dh4[:]...)

	okm, err := crypto.HKDF(nil, ikm, []byte(rootKeyLabel), 32)
	if err != nil {
		return domain.ChainKey{}, fmt.Errorf("x3dh: derive root0: %w", err)
	}
	var root domain.ChainKey
	copy(root[:], okm)
	return root, nil
}
