// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/simplicity-project/spld/wire"
)

// PaymentVote is a masternode winner message along with cached derived
// state.  It provides the signing domain, the content hash used as the
// dedup and inventory key, and signature helpers.
type PaymentVote struct {
	msgVote  *wire.MsgMNWinner
	voteHash *chainhash.Hash
}

// NewPaymentVote returns a new instance of a payment vote given an
// underlying wire message.
func NewPaymentVote(msgVote *wire.MsgMNWinner) *PaymentVote {
	return &PaymentVote{msgVote: msgVote}
}

// MsgVote returns the underlying wire message.
func (v *PaymentVote) MsgVote() *wire.MsgMNWinner {
	return v.msgVote
}

// Hash returns the content hash of the vote.  The hash is calculated on the
// first call and cached afterwards since a vote is immutable once admitted.
func (v *PaymentVote) Hash() *chainhash.Hash {
	if v.voteHash != nil {
		return v.voteHash
	}

	var buf bytes.Buffer
	_ = v.msgVote.BtcEncode(&buf, wire.ProtocolVersion)
	hash := chainhash.DoubleHashH(buf.Bytes())
	v.voteHash = &hash
	return v.voteHash
}

// Height returns the block height the vote elects a payee for.
func (v *PaymentVote) Height() int32 {
	return v.msgVote.BlockHeight
}

// Level returns the masternode level the vote applies to.
func (v *PaymentVote) Level() uint32 {
	return v.msgVote.PayeeLevel
}

// SigMessage returns the string the vote signature commits to: the voter's
// short outpoint form, the decimal block height, and the hex encoded payee
// script, concatenated.
func (v *PaymentVote) SigMessage() string {
	msg := v.msgVote
	return msg.VoterVin.PreviousOutPoint.ShortString() +
		strconv.FormatInt(int64(msg.BlockHeight), 10) +
		hex.EncodeToString(msg.PayeeScript)
}

// Sign signs the vote with the provided masternode operator key and stores
// the signature in the underlying message.  The produced signature is
// verified against the derived public key before it is accepted.
func (v *PaymentVote) Sign(key *btcec.PrivateKey) error {
	sig := signMessage(key, v.SigMessage())
	if err := verifyMessage(key.PubKey(), sig, v.SigMessage()); err != nil {
		return err
	}
	v.msgVote.Signature = sig
	return nil
}

// CheckSignature verifies the vote signature against the provided
// masternode public key.
func (v *PaymentVote) CheckSignature(pubKey *btcec.PublicKey) error {
	return verifyMessage(pubKey, v.msgVote.Signature, v.SigMessage())
}

// String returns the vote in a human-readable form for logging.
func (v *PaymentVote) String() string {
	msg := v.msgVote
	return fmt.Sprintf("vote %s: height=%d level=%d payee=%x voter=%s",
		v.Hash(), msg.BlockHeight, msg.PayeeLevel, msg.PayeeScript,
		msg.VoterVin.PreviousOutPoint.ShortString())
}
