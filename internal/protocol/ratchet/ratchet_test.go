package ratchet

import (
	"bytes"
	"testing"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// testAccounts builds two accounts with full key material and returns the
// bundle B would publish (with OPK id 7, per the happy-path scenario).
func testAccounts(t *testing.T) (a, b *domain.Account, bundleB domain.PreKeyBundle) {
	t.Helper()

	a = newTestAccount(t, "alice")
	b = newTestAccount(t, "bob")

	opk := b.OPKs[6] // id 7 (1-indexed ids, slice built in order)
	if opk.ID != 7 {
		t.Fatalf("test setup: expected OPK id 7 at index 6, got %d", opk.ID)
	}

	bundleB = domain.PreKeyBundle{
		Name:    b.Name,
		IKPub:   b.Identity.IKXPub,
		SPKPub:  b.SPK.Pub,
		SPKSig:  b.SPK.Sig,
		OPKPub:  opk.Pub,
		OPKID:   opk.ID,
		HasOPK:  true,
		IKEdPub: b.Identity.IKEdPub,
	}
	return a, b, bundleB
}

func newTestAccount(t *testing.T, name string) *domain.Account {
	t.Helper()

	ikEdPriv, ikEdPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate IK_Ed for %s: %v", name, err)
	}
	ikXPriv, ikXPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate IK_X for %s: %v", name, err)
	}
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate SPK for %s: %v", name, err)
	}
	sig := crypto.SignEd25519(ikEdPriv, spkPub.Slice())

	opks := make([]domain.OneTimePreKeyPair, 0, domain.MaxOneTimePreKeys)
	for i := uint32(1); i <= domain.MaxOneTimePreKeys; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("generate OPK %d for %s: %v", i, name, err)
		}
		opks = append(opks, domain.OneTimePreKeyPair{ID: i, Priv: priv, Pub: pub})
	}

	return &domain.Account{
		Name: domain.Username(name),
		Identity: domain.Identity{
			IKEdPriv: ikEdPriv,
			IKEdPub:  ikEdPub,
			IKXPriv:  ikXPriv,
			IKXPub:   ikXPub,
		},
		SPK:  domain.SignedPreKey{Priv: spkPriv, Pub: spkPub, Sig: sig},
		OPKs: opks,
	}
}

func establishSessions(t *testing.T) (sessA, sessB *domain.Session) {
	t.Helper()
	a, b, bundleB := testAccounts(t)

	sessA, req, err := Initiate(a.Name, a.Identity.IKXPriv, a.Identity.IKXPub, bundleB)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	sessB, err = Accept(b, req)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if sessA.RootKey != sessB.RootKey {
		t.Fatalf("root keys disagree after accept: %x != %x", sessA.RootKey, sessB.RootKey)
	}
	return sessA, sessB
}

func TestHappyPathThreeMessages(t *testing.T) {
	sessA, sessB := establishSessions(t)

	msgs := []string{"hello", "world", "!"}
	for _, m := range msgs {
		rec, err := Send(sessA, []byte(m))
		if err != nil {
			t.Fatalf("send %q: %v", m, err)
		}
		if rec.Type != domain.RecordPlain {
			t.Fatalf("expected plain record for %q, got type %c", m, rec.Type)
		}
		pt, err := Receive(sessB, rec)
		if err != nil {
			t.Fatalf("receive %q: %v", m, err)
		}
		if string(pt) != m {
			t.Fatalf("decrypted %q, want %q", pt, m)
		}
	}

	if sessA.SendCount != 3 {
		t.Fatalf("send_count_A = %d, want 3", sessA.SendCount)
	}
	if sessA.NeedsAck || sessB.NeedsAck {
		t.Fatal("needs_ack should be false on both sides after plain exchange")
	}
}

func TestReorderingWithinChain(t *testing.T) {
	sessA, sessB := establishSessions(t)

	var recs []domain.Record
	for _, m := range []string{"m1", "m2", "m3"} {
		rec, err := Send(sessA, []byte(m))
		if err != nil {
			t.Fatalf("send %q: %v", m, err)
		}
		recs = append(recs, rec)
	}

	order := []int{1, 0, 2} // m2, m1, m3
	want := []string{"m2", "m1", "m3"}
	for i, idx := range order {
		pt, err := Receive(sessB, recs[idx])
		if err != nil {
			t.Fatalf("receive out of order (%s): %v", want[i], err)
		}
		if string(pt) != want[i] {
			t.Fatalf("decrypted %q, want %q", pt, want[i])
		}
	}
}

func TestUnilateralRotateAtThreshold(t *testing.T) {
	sessA, sessB := establishSessions(t)

	for i := 0; i < domain.MaxTimeUpdate; i++ {
		rec, err := Send(sessA, []byte("plain"))
		if err != nil {
			t.Fatalf("send plain %d: %v", i, err)
		}
		if rec.Type != domain.RecordPlain {
			t.Fatalf("send %d: expected plain, got %c", i, rec.Type)
		}
		if _, err := Receive(sessB, rec); err != nil {
			t.Fatalf("receive plain %d: %v", i, err)
		}
	}

	rec, err := Send(sessA, []byte("rotate"))
	if err != nil {
		t.Fatalf("send rotate: %v", err)
	}
	if rec.Type != domain.RecordInitiativeUpdate {
		t.Fatalf("expected initiative-update at threshold, got type %c", rec.Type)
	}
	if sessA.SendCount != 1 {
		t.Fatalf("send_count_A after type-2 send = %d, want 1", sessA.SendCount)
	}

	if _, err := Receive(sessB, rec); err != nil {
		t.Fatalf("receive rotate: %v", err)
	}
	if !sessB.NeedsAck {
		t.Fatal("B should need to ack after receiving an initiative-update")
	}

	ackRec, err := Send(sessB, []byte("ack"))
	if err != nil {
		t.Fatalf("send ack: %v", err)
	}
	if ackRec.Type != domain.RecordPassiveUpdate {
		t.Fatalf("expected passive-update ack, got type %c", ackRec.Type)
	}
	if _, err := Receive(sessA, ackRec); err != nil {
		t.Fatalf("receive ack: %v", err)
	}
	if sessA.NeedsAck {
		t.Fatal("A should not need to ack")
	}
}

func TestCrossedRotate(t *testing.T) {
	sessA, sessB := establishSessions(t)
	sessA.SendCount = domain.MaxTimeUpdate
	sessB.SendCount = domain.MaxTimeUpdate

	recA, err := Send(sessA, []byte("from a"))
	if err != nil {
		t.Fatalf("send from a: %v", err)
	}
	recB, err := Send(sessB, []byte("from b"))
	if err != nil {
		t.Fatalf("send from b: %v", err)
	}
	if recA.Type != domain.RecordInitiativeUpdate || recB.Type != domain.RecordInitiativeUpdate {
		t.Fatal("expected both sides to send initiative-updates")
	}

	ptAtB, err := Receive(sessB, recA)
	if err != nil {
		t.Fatalf("B receive A's rotate: %v", err)
	}
	if string(ptAtB) != "from a" {
		t.Fatalf("B decrypted %q, want %q", ptAtB, "from a")
	}
	ptAtA, err := Receive(sessA, recB)
	if err != nil {
		t.Fatalf("A receive B's rotate: %v", err)
	}
	if string(ptAtA) != "from b" {
		t.Fatalf("A decrypted %q, want %q", ptAtA, "from b")
	}

	if !sessA.NeedsAck || !sessB.NeedsAck {
		t.Fatal("both sides should need to ack after a crossed rotate")
	}

	ackA, err := Send(sessA, []byte("ack from a"))
	if err != nil {
		t.Fatalf("send ack from a: %v", err)
	}
	ackB, err := Send(sessB, []byte("ack from b"))
	if err != nil {
		t.Fatalf("send ack from b: %v", err)
	}
	if _, err := Receive(sessB, ackA); err != nil {
		t.Fatalf("B receive ack from a: %v", err)
	}
	if _, err := Receive(sessA, ackB); err != nil {
		t.Fatalf("A receive ack from b: %v", err)
	}
	if sessA.NeedsAck || sessB.NeedsAck {
		t.Fatal("both sides should have cleared needs_ack after the ack exchange")
	}
}

func TestInitiateRejectsBadSignature(t *testing.T) {
	a, b, bundleB := testAccounts(t)
	bundleB.SPKSig = crypto.SignEd25519(a.Identity.IKEdPriv, bundleB.SPKPub.Slice()) // signed by the wrong identity

	if _, _, err := Initiate(a.Name, a.Identity.IKXPriv, a.Identity.IKXPub, bundleB); err != domain.ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	_ = b
}

func TestAcceptRejectsUnknownOPK(t *testing.T) {
	a, b, bundleB := testAccounts(t)
	bundleB.OPKID = 9999 // never issued

	sess, req, err := Initiate(a.Name, a.Identity.IKXPriv, a.Identity.IKXPub, bundleB)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	_ = sess

	if _, err := Accept(b, req); err != domain.ErrUnknownOPK {
		t.Fatalf("expected ErrUnknownOPK, got %v", err)
	}
}

func TestReceivePlainFailsWithTamperedCiphertext(t *testing.T) {
	sessA, sessB := establishSessions(t)
	rec, err := Send(sessA, []byte("hello"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	tampered := rec
	tampered.Ciphertext = append(bytes.Clone(rec.Ciphertext[:len(rec.Ciphertext)-1]), rec.Ciphertext[len(rec.Ciphertext)-1]^0xFF)

	if _, err := Receive(sessB, tampered); err != domain.ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}
