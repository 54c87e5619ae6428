package x3dh

import (
	"testing"

	"ciphera/internal/crypto"
)

func TestInitiatorResponderRootKeysAgree(t *testing.T) {
	ikAPriv, ikAPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate IK_A: %v", err)
	}
	ekPriv, ekPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate EK: %v", err)
	}
	ikBPriv, ikBPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate IK_B: %v", err)
	}
	spkBPriv, spkBPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate SPK_B: %v", err)
	}
	opkBPriv, opkBPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate OPK_B: %v", err)
	}

	rootA, err := InitiatorRoot(ikAPriv, ekPriv, ikBPub, spkBPub, opkBPub)
	if err != nil {
		t.Fatalf("initiator root: %v", err)
	}
	rootB, err := ResponderRoot(spkBPriv, ikBPriv, opkBPriv, ikAPub, ekPub)
	if err != nil {
		t.Fatalf("responder root: %v", err)
	}

	if rootA != rootB {
		t.Fatalf("root keys disagree: %x != %x", rootA, rootB)
	}
}

func TestVerifySPKRejectsBadSignature(t *testing.T) {
	ikEdPriv, ikEdPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate IK_Ed: %v", err)
	}
	_, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate SPK: %v", err)
	}
	sig := crypto.SignEd25519(ikEdPriv, spkPub.Slice())
	if err := VerifySPK(ikEdPub, spkPub, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	_, otherPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate other SPK: %v", err)
	}
	if err := VerifySPK(ikEdPub, otherPub, sig); err == nil {
		t.Fatal("forged signature accepted")
	}
}
