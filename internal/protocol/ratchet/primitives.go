// Package ratchet implements the hybrid symmetric/asymmetric ratchet state
// machine described in spec §3/§4.4-§4.6: it owns the root key, the two
// chain keys, the current DH ratchet keypair, and drives Send/Receive.
package ratchet

import (
	"fmt"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const (
	labelRecvKey         = "recv_key"
	labelIntermediateKey = "intermediate_key"
	labelRootKey         = "root_key"
	labelSendKey         = "send_key"
	labelRecvSendKey     = "recv_send_key"
	labelMessageKey      = "message_key"
)

// ChainStep advances chainKey one step (spec §4.4 hkdf_chain_step),
// returning the replacement chain key and a fresh message key. It is
// deterministic in chainKey and always advances it, whether or not the
// message key ends up used, which is what gives the chain forward secrecy
// independent of delivery.
func ChainStep(chainKey domain.ChainKey) (next domain.ChainKey, messageKey [32]byte, err error) {
	nextBytes, err := crypto.HKDF(nil, chainKey.Slice(), []byte(labelRecvSendKey), 32)
	if err != nil {
		return next, messageKey, fmt.Errorf("ratchet: chain step next: %w", err)
	}
	mkBytes, err := crypto.HKDF(nil, chainKey.Slice(), []byte(labelMessageKey), 32)
	if err != nil {
		return next, messageKey, fmt.Errorf("ratchet: chain step message key: %w", err)
	}
	copy(next[:], nextBytes)
	copy(messageKey[:], mkBytes)
	return next, messageKey, nil
}

// DHRatchet performs the two-stage derivation of spec §4.4: it binds a
// fresh DH output to the existing root key and produces a new root key
// plus a (recv, send) chain key pair, oriented by reverse.
func DHRatchet(shared [32]byte, rootKey domain.ChainKey, reverse bool) (newRoot, recvKey, sendKey domain.ChainKey, err error) {
	salt1 := crypto.HKDFExtract(rootKey.Slice(), shared[:])

	recvTmpBytes, err := crypto.HKDFExpand(salt1, []byte(labelRecvKey), 32)
	if err != nil {
		return newRoot, recvKey, sendKey, fmt.Errorf("ratchet: dh_ratchet recv_tmp: %w", err)
	}
	intermediate, err := crypto.HKDFExpand(salt1, []byte(labelIntermediateKey), 32)
	if err != nil {
		return newRoot, recvKey, sendKey, fmt.Errorf("ratchet: dh_ratchet intermediate: %w", err)
	}

	salt2 := crypto.HKDFExtract(intermediate, shared[:])

	newRootBytes, err := crypto.HKDFExpand(salt2, []byte(labelRootKey), 32)
	if err != nil {
		return newRoot, recvKey, sendKey, fmt.Errorf("ratchet: dh_ratchet root_key: %w", err)
	}
	sendTmpBytes, err := crypto.HKDFExpand(salt2, []byte(labelSendKey), 32)
	if err != nil {
		return newRoot, recvKey, sendKey, fmt.Errorf("ratchet: dh_ratchet send_tmp: %w", err)
	}

	var recvTmp, sendTmp domain.ChainKey
	copy(recvTmp[:], recvTmpBytes)
	copy(sendTmp[:], sendTmpBytes)
	copy(newRoot[:], newRootBytes)

	if reverse {
		return newRoot, sendTmp, recvTmp, nil
	}
	return newRoot, recvTmp, sendTmp, nil
}
