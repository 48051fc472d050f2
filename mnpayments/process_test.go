// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simplicity-project/spld/wire"
)

// newGossipHarness returns a harness with a voter and a payee masternode
// registered and a signed vote from the voter nominating the payee at the
// provided height.
func newGossipHarness(t *testing.T, tipHeight,
	voteHeight int32) (*testHarness, *wire.MsgMNWinner, *mockPeer) {

	t.Helper()

	h := newTestHarness(t, tipHeight)
	voter, voterKey := h.addMasternode(t, wire.MaxMasternodeLevel, 1)
	payee, _ := h.addMasternode(t, wire.MaxMasternodeLevel, 2)

	vote := makeVote(t, voter, voterKey, voteHeight, payee.PayeeScript(),
		wire.MaxMasternodeLevel, payee.Vin)
	return h, vote.MsgVote(), newMockPeer()
}

// TestProcessWinnerMessage covers the inbound happy path: the vote is
// admitted, relayed, and marked seen in the sync coordinator.
func TestProcessWinnerMessage(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)

	require.NoError(t, h.payments.ProcessWinnerMessage(peer, msg))

	vote := NewPaymentVote(msg)
	require.Contains(t, h.payments.votes, *vote.Hash())
	require.Len(t, h.notifier.relayed, 1)
	require.Equal(t, wire.InvTypeMasternodeWinner, h.notifier.relayed[0].Type)
	require.Contains(t, h.sync.seen, *vote.Hash())
	require.Zero(t, peer.misbehavior)

	// A second delivery is a duplicate and is marked seen again without
	// scoring the peer.
	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrDuplicateVote))
	require.Zero(t, peer.misbehavior)
}

// TestProcessWinnerMessageNotSynced verifies inbound votes are dropped
// until the chain is synced.
func TestProcessWinnerMessageNotSynced(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)
	h.sync.blockchainSynced = false

	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrNotSynced))
	require.Empty(t, h.payments.votes)
}

// TestProcessWinnerMessageLiteMode verifies lite mode disables processing.
func TestProcessWinnerMessageLiteMode(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)
	h.payments.cfg.LiteMode = true

	require.NoError(t, h.payments.ProcessWinnerMessage(peer, msg))
	require.Empty(t, h.payments.votes)
}

// TestProcessWinnerMessageOldPeer verifies votes from peers below the
// protocol floor are ignored.
func TestProcessWinnerMessageOldPeer(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)
	peer.protocol = wire.MinPeerProtoVersionBeforeEnforcement - 1

	require.NoError(t, h.payments.ProcessWinnerMessage(peer, msg))
	require.Empty(t, h.payments.votes)
}

// TestProcessWinnerMessageNotReady verifies a busy chain state yields the
// benign not-ready result.
func TestProcessWinnerMessageNotReady(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)
	h.chain.ready = false

	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrNotReady))
}

// TestProcessWinnerMessageUnknownPayee verifies the registry fetch paths
// for unknown payees.
func TestProcessWinnerMessageUnknownPayee(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)

	// Point the vote at a payee the registry does not know.
	msg.PayeeVin.PreviousOutPoint.Index = 7

	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrUnknownPayee))
	require.Len(t, h.registry.askedFor, 1)
	require.Equal(t, msg.PayeeVin.PreviousOutPoint, h.registry.askedFor[0])

	// The asked cache suppresses a second fetch for the same outpoint.
	err = h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrUnknownPayee))
	require.Len(t, h.registry.askedFor, 1)
}

// TestProcessWinnerMessageLegacyBackfill verifies that a legacy vote with
// an empty payee vin is backfilled from the registry by script and that an
// unknown script triggers a dseg update.
func TestProcessWinnerMessageLegacyBackfill(t *testing.T) {
	h := newTestHarness(t, 1000)
	voter, voterKey := h.addMasternode(t, 2, 1)
	payee, _ := h.addMasternode(t, 2, 2)

	// Legacy votes carry the top level and no payee vin on the wire.
	vote := makeVote(t, voter, voterKey, 1001, payee.PayeeScript(),
		wire.MaxMasternodeLevel, wire.TxIn{})
	msg := vote.MsgVote()
	peer := newMockPeer()

	require.NoError(t, h.payments.ProcessWinnerMessage(peer, msg))

	// The level and vin were backfilled from the registry.
	require.Equal(t, uint32(2), msg.PayeeLevel)
	require.Equal(t, payee.Vin, msg.PayeeVin)

	// An unknown script cannot be backfilled; the peer is asked for a
	// full list refresh instead.
	vote2 := makeVote(t, voter, voterKey, 1002, p2pkhScript(0x31),
		wire.MaxMasternodeLevel, wire.TxIn{})
	err := h.payments.ProcessWinnerMessage(peer, vote2.MsgVote())
	require.True(t, IsErrorCode(err, ErrUnknownPayee))
	require.Equal(t, 1, h.registry.dsegUpdates)
}

// TestProcessWinnerMessageWindow verifies the inbound height window.
func TestProcessWinnerMessageWindow(t *testing.T) {
	// Scenario: a vote 21 blocks past the tip is rejected on admission.
	h, msg, peer := newGossipHarness(t, 5000, 5021)

	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrStaleWindow))
	require.Zero(t, peer.misbehavior)

	// One block closer it is accepted.
	h2, msg2, peer2 := newGossipHarness(t, 5000, 5020)
	require.NoError(t, h2.payments.ProcessWinnerMessage(peer2, msg2))
}

// TestProcessWinnerMessageRank covers the rank acceptance bands: ranks
// above ten are dropped silently, ranks above twenty score the peer once
// synced.
func TestProcessWinnerMessageRank(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)
	voterOut := msg.VoterVin.PreviousOutPoint

	// Tolerated band: dropped without scoring.
	h.registry.ranks[voterOut] = SignaturesTotal + 5
	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrBadRank))
	require.Zero(t, peer.misbehavior)

	// Way off: scored.
	h.registry.ranks[voterOut] = SignaturesTotal*2 + 1
	err = h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrBadRank))
	require.Equal(t, 20, peer.misbehavior)

	// Not scored while still syncing.
	peer.misbehavior = 0
	h.sync.synced = false
	err = h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrBadRank))
	require.Zero(t, peer.misbehavior)
}

// TestProcessWinnerMessageBadSignature verifies that a tampered signature
// scores the peer and triggers a masternode refresh once synced.
func TestProcessWinnerMessageBadSignature(t *testing.T) {
	h, msg, peer := newGossipHarness(t, 1000, 1001)
	msg.Signature[10] ^= 0x01

	err := h.payments.ProcessWinnerMessage(peer, msg)
	require.True(t, IsErrorCode(err, ErrBadSignature))
	require.Equal(t, 20, peer.misbehavior)
	require.Len(t, h.registry.askedFor, 1)
	require.Equal(t, msg.VoterVin.PreviousOutPoint, h.registry.askedFor[0])
	require.Empty(t, h.payments.votes)
}

// TestProcessWinnerMessageAlreadyVoted verifies the handler rejects a
// second nomination from the same voter for the same height and level.
func TestProcessWinnerMessageAlreadyVoted(t *testing.T) {
	h := newTestHarness(t, 1000)
	voter, voterKey := h.addMasternode(t, wire.MaxMasternodeLevel, 1)
	payeeA, _ := h.addMasternode(t, wire.MaxMasternodeLevel, 2)
	payeeB, _ := h.addMasternode(t, wire.MaxMasternodeLevel, 3)
	peer := newMockPeer()

	voteA := makeVote(t, voter, voterKey, 1001, payeeA.PayeeScript(),
		wire.MaxMasternodeLevel, payeeA.Vin)
	require.NoError(t, h.payments.ProcessWinnerMessage(peer, voteA.MsgVote()))

	voteB := makeVote(t, voter, voterKey, 1001, payeeB.PayeeScript(),
		wire.MaxMasternodeLevel, payeeB.Vin)
	err := h.payments.ProcessWinnerMessage(peer, voteB.MsgVote())
	require.True(t, IsErrorCode(err, ErrAlreadyVoted))
	require.Zero(t, peer.misbehavior)
}

// TestSyncPush verifies the initial-sync push: recent votes are advertised
// and the chunk is terminated with an ssc marker carrying the count.
func TestSyncPush(t *testing.T) {
	h := newTestHarness(t, 1000)

	script := p2pkhScript(0x42)
	admitVotes(t, h, 3, 1000, script, wire.MaxMasternodeLevel)

	// An aged vote outside the per-level sync depth is not pushed.  With
	// four enabled nodes at the top level the depth works out to five
	// blocks.
	oldVoter, oldKey := h.addMasternode(t, wire.MaxMasternodeLevel, 11)
	oldVote := makeVote(t, oldVoter, oldKey, 900, script,
		wire.MaxMasternodeLevel, wire.TxIn{})
	require.NoError(t, h.payments.AddWinningVote(oldVote))

	peer := newMockPeer()
	h.payments.Sync(peer, 100)

	require.Len(t, peer.invs, 3)
	require.Len(t, peer.messages, 1)
	ssc, ok := peer.messages[0].(*wire.MsgSyncStatusCount)
	require.True(t, ok)
	require.Equal(t, wire.SyncItemMNWinner, ssc.ItemID)
	require.Equal(t, int32(3), ssc.Count)
}
