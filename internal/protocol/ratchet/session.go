package ratchet

import (
	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/x3dh"
)

// Initiate runs the initiator side of X3DH and seeds a fresh session
// against a peer's published bundle (spec §4.3, initiator). myName is the
// local account name; myIK is the local account's X25519 identity keypair.
func Initiate(myName domain.Username, myIKPriv domain.X25519Private, myIKPub domain.X25519Public, peer domain.PreKeyBundle) (*domain.Session, domain.SessionRequest, error) {
	if err := x3dh.VerifySPK(peer.IKEdPub, peer.SPKPub, peer.SPKSig); err != nil {
		return nil, domain.SessionRequest{}, err
	}

	ekPriv, ekPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, domain.SessionRequest{}, domain.ErrRngFailure
	}

	root0, err := x3dh.InitiatorRoot(myIKPriv, ekPriv, peer.IKPub, peer.SPKPub, peer.OPKPub)
	if err != nil {
		return nil, domain.SessionRequest{}, err
	}

	shared, err := crypto.DH(ekPriv, peer.OPKPub)
	if err != nil {
		return nil, domain.SessionRequest{}, err
	}
	newRoot, recvKey, sendKey, err := DHRatchet(shared, root0, false)
	if err != nil {
		return nil, domain.SessionRequest{}, err
	}

	sess := &domain.Session{
		Peer:        peer.Name,
		RootKey:     newRoot,
		RecvKey:     recvKey,
		SendKey:     sendKey,
		RatchetPriv: ekPriv,
		RatchetPub:  ekPub,
		LastPeerPub: peer.OPKPub,
		SendCount:   0,
		NeedsAck:    false,
		Reverse:     false,
	}
	req := domain.SessionRequest{
		Account: myName,
		Target:  peer.Name,
		IKPub:   myIKPub,
		EKPub:   ekPub,
		OPKID:   peer.OPKID,
	}
	return sess, req, nil
}

// Accept runs the responder side of X3DH against an incoming session
// request, reusing the consumed one-time prekey as the first ratchet
// keypair (spec §4.3, responder).
func Accept(myAccount *domain.Account, req domain.SessionRequest) (*domain.Session, error) {
	opk, ok := myAccount.FindOPK(req.OPKID)
	if !ok {
		return nil, domain.ErrUnknownOPK
	}

	root0, err := x3dh.ResponderRoot(myAccount.SPK.Priv, myAccount.Identity.IKXPriv, opk.Priv, req.IKPub, req.EKPub)
	if err != nil {
		return nil, err
	}

	shared, err := crypto.DH(opk.Priv, req.EKPub)
	if err != nil {
		return nil, err
	}
	newRoot, recvKey, sendKey, err := DHRatchet(shared, root0, true)
	if err != nil {
		return nil, err
	}

	sess := &domain.Session{
		Peer:        req.Account,
		RootKey:     newRoot,
		RecvKey:     recvKey,
		SendKey:     sendKey,
		RatchetPriv: opk.Priv,
		RatchetPub:  opk.Pub,
		LastPeerPub: req.EKPub,
		SendCount:   0,
		NeedsAck:    false,
		Reverse:     true,
	}
	return sess, nil
}

// Send advances sess and produces the next outgoing record (spec §4.5).
func Send(sess *domain.Session, plaintext []byte) (domain.Record, error) {
	switch {
	case sess.NeedsAck:
		return sendPassiveUpdate(sess, plaintext)
	case sess.SendCount >= domain.MaxTimeUpdate:
		return sendInitiativeUpdate(sess, plaintext)
	default:
		return sendPlain(sess, plaintext)
	}
}

func sendPlain(sess *domain.Session, plaintext []byte) (domain.Record, error) {
	next, mk, err := ChainStep(sess.SendKey)
	if err != nil {
		return domain.Record{}, err
	}
	nonce, ct, err := crypto.Seal(mk, nil, plaintext)
	if err != nil {
		return domain.Record{}, err
	}
	sess.SendKey = next
	sess.SendCount++
	return domain.Record{Type: domain.RecordPlain, Nonce: nonce, Ciphertext: ct}, nil
}

func sendPassiveUpdate(sess *domain.Session, plaintext []byte) (domain.Record, error) {
	next, mk, err := ChainStep(sess.SendKey)
	if err != nil {
		return domain.Record{}, err
	}
	nonce, ct, err := crypto.Seal(mk, nil, plaintext)
	if err != nil {
		return domain.Record{}, err
	}
	sess.SendKey = next
	sess.NeedsAck = false
	sess.ClearSkipped()
	sess.SendCount++
	return domain.Record{Type: domain.RecordPassiveUpdate, NewRatchetPub: sess.RatchetPub, Nonce: nonce, Ciphertext: ct}, nil
}

func sendInitiativeUpdate(sess *domain.Session, plaintext []byte) (domain.Record, error) {
	newPriv, newPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Record{}, domain.ErrRngFailure
	}
	// mk is derived from the chain seeded by the last DH step; the peer
	// mixes the new ratchet public in on receipt, not the sender locally.
	next, mk, err := ChainStep(sess.SendKey)
	if err != nil {
		return domain.Record{}, err
	}
	nonce, ct, err := crypto.Seal(mk, nil, plaintext)
	if err != nil {
		return domain.Record{}, err
	}
	sess.SendKey = next
	sess.RatchetPriv = newPriv
	sess.RatchetPub = newPub
	sess.SendCount = 1
	return domain.Record{Type: domain.RecordInitiativeUpdate, NewRatchetPub: newPub, Nonce: nonce, Ciphertext: ct}, nil
}

// Receive parses an inbound record against sess and returns the decrypted
// plaintext (spec §4.6).
func Receive(sess *domain.Session, rec domain.Record) ([]byte, error) {
	switch rec.Type {
	case domain.RecordPlain:
		return receivePlain(sess, rec)
	case domain.RecordInitiativeUpdate:
		return receiveInitiativeUpdate(sess, rec)
	case domain.RecordPassiveUpdate:
		return receivePassiveUpdate(sess, rec)
	default:
		return nil, domain.ErrMalformedRecord
	}
}

// receivePlain steps the recv chain looking for the key that opens rec. A
// message sent out of order can land ahead of the current chain position,
// so this walks forward up to MaxSkippedChainKeys steps and, once the walk
// finds the key, retains every position it passed over as a skipped chain
// key (so a still-earlier message that arrives later can still be found); a
// position behind the current chain is instead looked up in the retained
// skipped list.
func receivePlain(sess *domain.Session, rec domain.Record) ([]byte, error) {
	return decryptOnRecvChain(sess, rec)
}

// decryptOnRecvChain is the shared walk used by receivePlain and by
// receiveInitiativeUpdate's first phase: both open a record under the
// *current* recv chain before touching any ratchet state. It walks the
// chain forward up to MaxSkippedChainKeys steps; if one opens the record,
// every position it passed over is retained as a skipped chain key. A walk
// that finds nothing leaves the session untouched and falls back to the
// retained skipped list for a message from further behind.
func decryptOnRecvChain(sess *domain.Session, rec domain.Record) ([]byte, error) {
	cur := sess.RecvKey
	var passed []domain.ChainKey
	for i := 0; i < domain.MaxSkippedChainKeys; i++ {
		next, mk, err := ChainStep(cur)
		if err != nil {
			return nil, err
		}
		if pt, err := crypto.Open(mk, rec.Nonce, nil, rec.Ciphertext); err == nil {
			for _, ck := range passed {
				sess.PushSkipped(ck)
			}
			sess.RecvKey = next
			return pt, nil
		}
		passed = append(passed, cur)
		cur = next
	}
	if pt, ok := tryDecryptSkipped(sess, rec); ok {
		return pt, nil
	}
	return nil, domain.ErrDecryptFailed
}

// ratchetOntoPeer runs the DH ratchet step against rec.NewRatchetPub using
// our own existing ratchet keypair (never a freshly generated one — see the
// doc comment on receiveInitiativeUpdate for why) and replaces
// root/recv/send. It does not touch RatchetPriv/RatchetPub: only
// sendInitiativeUpdate introduces a fresh local keypair: receiving a peer's
// update only ever folds their new public into our side via DH.
func ratchetOntoPeer(sess *domain.Session, rec domain.Record) error {
	sess.LastPeerPub = rec.NewRatchetPub
	shared, err := crypto.DH(sess.RatchetPriv, rec.NewRatchetPub)
	if err != nil {
		return err
	}
	newRoot, recvKey, sendKey, err := DHRatchet(shared, sess.RootKey, sess.Reverse)
	if err != nil {
		return err
	}
	sess.RootKey = newRoot
	sess.RecvKey = recvKey
	sess.SendKey = sendKey
	return nil
}

// receiveInitiativeUpdate handles a record where the peer unilaterally
// advanced its ratchet (spec §4.6 type 2, wire type "2"). sendInitiativeUpdate
// derives mk from its pre-rotation send chain and never mixes the new
// ratchet public into its own state, so this decrypts under the current recv
// chain first, exactly like a plain message, and only runs the DH ratchet
// step — against our own existing ratchet keypair, never a fresh one —
// after a successful open, to prepare the chain for what comes next.
//
// original_source's recv_update_passive (the function that actually
// receives this wire type) generates a fresh local keypair at this point
// instead of reusing the existing one. That does not round-trip when both
// peers rotate unilaterally at once (spec §8.4): each side would fold in an
// independently-generated keypair the other side never sees, so the two
// DH computations land on unrelated values instead of the same shared
// secret. Reusing the existing keypair — the same one the peer already
// has, from whenever the ratchet was last used — is the only choice under
// which both sides derive the same shared secret in that scenario, and it
// still matches spec §4.6's own literal description of this step, which
// never mentions generating anything new.
func receiveInitiativeUpdate(sess *domain.Session, rec domain.Record) ([]byte, error) {
	pt, err := decryptOnRecvChain(sess, rec)
	if err != nil {
		return nil, err
	}

	// Retain the chain just used: messages sent under it may still be in
	// flight even though the peer has moved the ratchet forward.
	sess.PushSkipped(sess.RecvKey)

	if err := ratchetOntoPeer(sess, rec); err != nil {
		return nil, err
	}
	sess.NeedsAck = true
	sess.SendCount = 0

	return pt, nil
}

// receivePassiveUpdate handles a record where the peer acknowledged a
// ratchet (spec §4.6 type 1, wire type "1"). sendPassiveUpdate never
// generates a new keypair and never mixes a new DH value into mk — it just
// steps the sender's current send chain — so whether this needs to ratchet
// first depends on whether we already folded the peer's current ratchet
// public into our chains:
//
//   - First time this peer's public is new to us (the common case: we
//     unilaterally rotated and this is the ack), the current recv chain
//     predates the rotation and can't open the record, so this runs the DH
//     ratchet step first (recv_update_initiative's order) and then decrypts
//     under the freshly-ratcheted chain.
//   - If both sides rotated at once (spec §8.4) and each already folded in
//     the other's public while processing the other's own initiative-update,
//     the chains are already converged and the record opens directly under
//     the current recv chain with no ratchet step at all — running the DH
//     step again here would fold the same peer public into the *already
//     rotated* root a second time and the two sides would diverge.
//
// So this tries a plain decrypt first and only falls back to ratcheting on
// failure, rather than unconditionally ratcheting first.
func receivePassiveUpdate(sess *domain.Session, rec domain.Record) ([]byte, error) {
	if pt, err := decryptOnRecvChain(sess, rec); err == nil {
		sess.NeedsAck = false
		sess.SendCount = 0
		return pt, nil
	}

	// Ratchet a copy so a record that still fails to open leaves sess as it was.
	trial := *sess
	if err := ratchetOntoPeer(&trial, rec); err != nil {
		return nil, err
	}

	next, mk, err := ChainStep(trial.RecvKey)
	if err != nil {
		return nil, err
	}
	pt, err := crypto.Open(mk, rec.Nonce, nil, rec.Ciphertext)
	if err != nil {
		return nil, domain.ErrDecryptFailed
	}
	trial.RecvKey = next
	trial.NeedsAck = false
	trial.SendCount = 0
	*sess = trial

	return pt, nil
}

// tryDecryptSkipped attempts rec against every retained skipped chain key,
// each independently stepped in a local copy. On success the matching
// entry is replaced with its stepped value so the next message on that
// chain advances correctly.
func tryDecryptSkipped(sess *domain.Session, rec domain.Record) ([]byte, bool) {
	for i, sk := range sess.Skipped {
		next, mk, err := ChainStep(sk.Key)
		if err != nil {
			continue
		}
		pt, err := crypto.Open(mk, rec.Nonce, nil, rec.Ciphertext)
		if err != nil {
			continue
		}
		sess.Skipped[i] = domain.SkippedChainKey{Key: next}
		return pt, true
	}
	return nil, false
}
