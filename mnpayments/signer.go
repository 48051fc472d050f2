// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/simplicity-project/spld/wire"
)

// messageSignatureMagic is prepended to messages before hashing so that
// masternode message signatures cannot be repurposed as transaction
// signatures.
const messageSignatureMagic = "Simplicity Signed Message:\n"

// ErrSigVerifyFailed is returned when a recovered signature does not match
// the expected masternode key.
var ErrSigVerifyFailed = errors.New("signature verification failed")

// messageHash returns the double sha256 hash of the magic-prefixed message
// the way masternode messages are signed on this chain.
func messageHash(msg string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, messageSignatureMagic)
	_ = wire.WriteVarString(&buf, 0, msg)
	return chainhash.DoubleHashB(buf.Bytes())
}

// signMessage signs the magic-prefixed message with the provided masternode
// key and returns the compact signature.
func signMessage(key *btcec.PrivateKey, msg string) []byte {
	return ecdsa.SignCompact(key, messageHash(msg), true)
}

// verifyMessage checks a compact signature over the magic-prefixed message
// against the expected masternode public key.
func verifyMessage(pubKey *btcec.PublicKey, sig []byte, msg string) error {
	recovered, _, err := ecdsa.RecoverCompact(sig, messageHash(msg))
	if err != nil {
		return err
	}
	if !recovered.IsEqual(pubKey) {
		return ErrSigVerifyFailed
	}
	return nil
}

// payToPubKeyScript returns the canonical pay-to-pubkey script for the
// provided key.
func payToPubKeyScript(pubKey *btcec.PublicKey) []byte {
	serialized := pubKey.SerializeCompressed()
	script := make([]byte, 0, len(serialized)+2)
	script = append(script, byte(len(serialized)))
	script = append(script, serialized...)
	script = append(script, 0xac) // OP_CHECKSIG
	return script
}
