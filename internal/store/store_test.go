package store

import (
	"context"
	"os"
	"testing"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

func TestIdentityStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileIdentityStore(dir, "correct horse battery staple")
	ctx := context.Background()

	ikEdPriv, ikEdPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate ed25519: %v", err)
	}
	ikXPriv, ikXPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate x25519: %v", err)
	}
	acct := &domain.Account{
		Name: "alice",
		Identity: domain.Identity{
			IKEdPriv: ikEdPriv,
			IKEdPub:  ikEdPub,
			IKXPriv:  ikXPriv,
			IKXPub:   ikXPub,
		},
	}

	if err := s.Save(ctx, acct); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != acct.Name || got.Identity.IKXPub != acct.Identity.IKXPub {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestIdentityStoreWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	acct := &domain.Account{Name: "bob"}

	if err := NewFileIdentityStore(dir, "right").Save(ctx, acct); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := NewFileIdentityStore(dir, "wrong").Load(ctx); err == nil {
		t.Fatal("expected load with wrong passphrase to fail")
	}
}

func TestIdentityStoreMissingFileReportsNotExist(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFileIdentityStore(dir, "x").Load(context.Background()); !os.IsNotExist(err) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestSessionStoreRoundTripAndDelete(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := NewFileSessionStore(dir, "passphrase")

	sess := &domain.Session{Peer: "bob", SendCount: 3, NeedsAck: true, Reverse: true}
	if err := s.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "bob")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SendCount != 3 || !got.NeedsAck || !got.Reverse {
		t.Fatalf("round trip mismatch: got %+v", got)
	}

	if err := s.Delete(ctx, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(ctx, "bob"); err == nil {
		t.Fatal("expected load after delete to fail")
	}
	// deleting again must be a no-op, not an error
	if err := s.Delete(ctx, "bob"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
