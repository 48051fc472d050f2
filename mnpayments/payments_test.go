// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"

	"github.com/simplicity-project/spld/chaincfg"
	"github.com/simplicity-project/spld/wire"
)

// admitVotes signs and admits count votes for the provided payee script at
// the provided height and level, each from a fresh top ranked masternode.
func admitVotes(t *testing.T, h *testHarness, count int, height int32,
	script []byte, level uint32) {

	t.Helper()

	for i := 0; i < count; i++ {
		voter, key := h.addMasternode(t, level, i+1)
		vote := makeVote(t, voter, key, height, script, level, wire.TxIn{})
		require.NoError(t, h.payments.AddWinningVote(vote))
	}
}

// TestQuorumEnforcement covers the happy path with a single enforced tier:
// six votes make the payee enforceable, a transaction paying it passes, and
// removing the payment output fails the check.
func TestQuorumEnforcement(t *testing.T) {
	h := newTestHarness(t, 1000)

	// New tiers are off, so only the top tier is enforced.
	script := p2pkhScript(0x42)
	admitVotes(t, h, SignaturesRequired, 1000, script,
		wire.MaxMasternodeLevel)

	blockValue := btcutil.Amount(50 * 1e8)

	tx := wire.NewMsgTx()
	tx.AddTxOut(wire.NewTxOut(int64(blockValue-h.rewards.payment), p2pkhScript(0x01)))
	tx.AddTxOut(wire.NewTxOut(int64(h.rewards.payment), script))

	require.True(t, h.payments.IsTransactionValid(tx, 1000, blockValue, false))

	// Without the payment output the transaction must fail.
	missing := wire.NewMsgTx()
	missing.AddTxOut(wire.NewTxOut(int64(blockValue), p2pkhScript(0x01)))
	require.False(t, h.payments.IsTransactionValid(missing, 1000, blockValue,
		false))

	// Underpaying the payee must fail as well.
	underpaid := wire.NewMsgTx()
	underpaid.AddTxOut(wire.NewTxOut(int64(h.rewards.payment)-1, script))
	require.False(t, h.payments.IsTransactionValid(underpaid, 1000,
		blockValue, false))

	// Overpayment is tolerated at this layer.
	overpaid := wire.NewMsgTx()
	overpaid.AddTxOut(wire.NewTxOut(int64(h.rewards.payment)+1, script))
	require.True(t, h.payments.IsTransactionValid(overpaid, 1000, blockValue,
		false))
}

// TestQuorumFloor verifies that no tier is enforced until a payee collects
// six votes.
func TestQuorumFloor(t *testing.T) {
	h := newTestHarness(t, 1000)

	script := p2pkhScript(0x42)
	admitVotes(t, h, SignaturesRequired-1, 1000, script,
		wire.MaxMasternodeLevel)

	// Five votes are not quorum; any transaction is acceptable.
	tx := wire.NewMsgTx()
	tx.AddTxOut(wire.NewTxOut(1, p2pkhScript(0x99)))
	require.True(t, h.payments.IsTransactionValid(tx, 1000,
		h.rewards.blockValue, false))
}

// TestValidationIdempotence verifies that repeated validation calls with no
// admissions in between return the same answer.
func TestValidationIdempotence(t *testing.T) {
	h := newTestHarness(t, 1000)

	script := p2pkhScript(0x42)
	admitVotes(t, h, SignaturesRequired, 1000, script,
		wire.MaxMasternodeLevel)

	tx := wire.NewMsgTx()
	tx.AddTxOut(wire.NewTxOut(int64(h.rewards.payment), script))

	first := h.payments.IsTransactionValid(tx, 1000, h.rewards.blockValue,
		false)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, h.payments.IsTransactionValid(tx, 1000,
			h.rewards.blockValue, false))
	}
}

// TestPayeeTieBreak verifies that a vote tie is broken toward the bytewise
// lowest script.
func TestPayeeTieBreak(t *testing.T) {
	h := newTestHarness(t, 2000)

	scriptA := p2pkhScript(0x01)
	scriptB := p2pkhScript(0x02)

	// Admit B's votes first so insertion order does not decide.
	admitVotes(t, h, SignaturesRequired, 2000, scriptB,
		wire.MaxMasternodeLevel)
	admitVotes(t, h, SignaturesRequired, 2000, scriptA,
		wire.MaxMasternodeLevel)

	payee, ok := h.payments.GetBlockPayee(2000, wire.MaxMasternodeLevel)
	require.True(t, ok)
	require.Equal(t, scriptA, payee)
}

// TestDuplicateVoterRejected verifies the one vote per voter, per height,
// per level rule.
func TestDuplicateVoterRejected(t *testing.T) {
	h := newTestHarness(t, 7000)

	scriptA := p2pkhScript(0xaa)
	scriptB := p2pkhScript(0xbb)

	voter, key := h.addMasternode(t, wire.MaxMasternodeLevel, 1)

	voteA := makeVote(t, voter, key, 7000, scriptA,
		wire.MaxMasternodeLevel, wire.TxIn{})
	require.NoError(t, h.payments.AddWinningVote(voteA))

	voteB := makeVote(t, voter, key, 7000, scriptB,
		wire.MaxMasternodeLevel, wire.TxIn{})
	err := h.payments.AddWinningVote(voteB)
	require.True(t, IsErrorCode(err, ErrAlreadyVoted))

	// The tally shows A with one vote and B absent.
	tally := h.payments.blocks[7000]
	require.Len(t, tally.Payees, 1)
	require.Equal(t, scriptA, tally.Payees[0].Script)
	require.Equal(t, 1, tally.Payees[0].Votes)

	// The exact same vote is a duplicate, not a double vote.
	err = h.payments.AddWinningVote(voteA)
	require.True(t, IsErrorCode(err, ErrDuplicateVote))
}

// TestSameVoterDifferentLevels verifies that the single vote rule is scoped
// per level.
func TestSameVoterDifferentLevels(t *testing.T) {
	h := newTestHarness(t, 1000)

	voter, key := h.addMasternode(t, 1, 1)

	vote1 := makeVote(t, voter, key, 1000, p2pkhScript(0x01), 1, wire.TxIn{})
	require.NoError(t, h.payments.AddWinningVote(vote1))

	vote2 := makeVote(t, voter, key, 1000, p2pkhScript(0x01), 2, wire.TxIn{})
	require.NoError(t, h.payments.AddWinningVote(vote2))
}

// TestAdmissionNeedsReferenceBlock verifies that a vote is rejected until
// the ranking reference block 100 blocks below its height exists.
func TestAdmissionNeedsReferenceBlock(t *testing.T) {
	h := newTestHarness(t, 50)

	voter, key := h.addMasternode(t, wire.MaxMasternodeLevel, 1)
	vote := makeVote(t, voter, key, 151, p2pkhScript(0x01),
		wire.MaxMasternodeLevel, wire.TxIn{})

	// Reference height 51 is above the tip of 50.
	err := h.payments.AddWinningVote(vote)
	require.True(t, IsErrorCode(err, ErrUnknownBlock))

	h.chain.height = 51
	require.NoError(t, h.payments.AddWinningVote(vote))
}

// TestCleanPaymentList covers the horizon prune: with an 800 node overlay
// the retention floor of 1000 governs, so at tip 5000 a vote for 3999 ages
// out while votes for 4000 and 5020 survive.
func TestCleanPaymentList(t *testing.T) {
	h := newTestHarness(t, 5000)
	h.registry.count = 800

	voter, key := h.addMasternode(t, wire.MaxMasternodeLevel, 1)

	voteOld := makeVote(t, voter, key, 3999, p2pkhScript(0x01),
		wire.MaxMasternodeLevel, wire.TxIn{})
	voteEdge := makeVote(t, voter, key, 4000, p2pkhScript(0x01),
		wire.MaxMasternodeLevel, wire.TxIn{})
	voteFuture := makeVote(t, voter, key, 5020, p2pkhScript(0x01),
		wire.MaxMasternodeLevel, wire.TxIn{})

	require.NoError(t, h.payments.AddWinningVote(voteOld))
	require.NoError(t, h.payments.AddWinningVote(voteEdge))
	require.NoError(t, h.payments.AddWinningVote(voteFuture))

	// Mark the old vote seen so its marker eviction is observable.
	h.sync.AddedWinner(voteOld.Hash())

	h.payments.CleanPaymentList()

	require.NotContains(t, h.payments.votes, *voteOld.Hash())
	require.Contains(t, h.payments.votes, *voteEdge.Hash())
	require.Contains(t, h.payments.votes, *voteFuture.Hash())
	require.NotContains(t, h.payments.blocks, int32(3999))
	require.NotContains(t, h.sync.seen, *voteOld.Hash())

	// A pruned voter slot opens up again.
	require.True(t, h.payments.CanVote(voter.Vin.PreviousOutPoint, 3999,
		wire.MaxMasternodeLevel))
}

// TestCleanPaymentListSharedHeight pins the behavior that the first aged
// out vote removes the whole tally for its height; removals for the same
// height by later votes are no-ops.
func TestCleanPaymentListSharedHeight(t *testing.T) {
	h := newTestHarness(t, 1000)

	admitVotes(t, h, 3, 1000, p2pkhScript(0x01), wire.MaxMasternodeLevel)
	require.Contains(t, h.payments.blocks, int32(1000))

	h.chain.height = 2500
	h.payments.CleanPaymentList()

	require.Empty(t, h.payments.votes)
	require.Empty(t, h.payments.blocks)
	require.Empty(t, h.payments.lastVotes)
}

// TestBudgetOverride verifies that on a budget payment height the payee
// check is delegated to the budget subsystem: an otherwise illegal payee is
// accepted when the budget accepts the transaction.
func TestBudgetOverride(t *testing.T) {
	h := newTestHarness(t, 3000)
	h.sporks.active[SporkEnableSuperblocks] = true
	h.sporks.active[SporkMasternodePaymentEnforcement] = true

	// A quorum exists for a script the block does not pay.
	script := p2pkhScript(0x42)
	admitVotes(t, h, SignaturesRequired, 3001, script,
		wire.MaxMasternodeLevel)

	coinbase := wire.NewMsgTx()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(50*1e8, p2pkhScript(0x99)))

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			PrevBlock: hashForHeight(3000),
			Timestamp: time.Unix(1700000000, 0),
		},
		Transactions: []*wire.MsgTx{coinbase},
	}

	// Without the budget override the block fails the tally check.
	require.False(t, h.payments.IsBlockPayeeValid(block, 3001))

	h.budget.budgetBlocks[3001] = true
	h.budget.txStatus = TxStatusValid
	require.True(t, h.payments.IsBlockPayeeValid(block, 3001))

	// An invalid budget payment is rejected under budget enforcement.
	h.budget.txStatus = TxStatusInvalid
	h.sporks.active[SporkBudgetEnforcement] = true
	require.False(t, h.payments.IsBlockPayeeValid(block, 3001))

	// Without budget enforcement the check falls through to the
	// masternode tally, which this block satisfies.
	h.sporks.active[SporkBudgetEnforcement] = false
	paid := wire.NewMsgTx()
	paid.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	paid.AddTxOut(wire.NewTxOut(int64(h.rewards.payment), script))
	paidBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			PrevBlock: hashForHeight(3000),
			Timestamp: time.Unix(1700000000, 0),
		},
		Transactions: []*wire.MsgTx{paid},
	}
	require.True(t, h.payments.IsBlockPayeeValid(paidBlock, 3001))

	// A block that satisfies neither the budget nor the tally is
	// rejected.
	require.False(t, h.payments.IsBlockPayeeValid(block, 3001))
}

// TestPayeeValidNotSynced verifies that payee checks are skipped while the
// node catches up.
func TestPayeeValidNotSynced(t *testing.T) {
	h := newTestHarness(t, 3000)
	h.sync.synced = false
	h.sporks.active[SporkMasternodePaymentEnforcement] = true

	script := p2pkhScript(0x42)
	admitVotes(t, h, SignaturesRequired, 3001, script,
		wire.MaxMasternodeLevel)

	coinbase := wire.NewMsgTx()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(50*1e8, p2pkhScript(0x99)))
	block := &wire.MsgBlock{
		Header:       wire.BlockHeader{PrevBlock: hashForHeight(3000)},
		Transactions: []*wire.MsgTx{coinbase},
	}

	require.True(t, h.payments.IsBlockPayeeValid(block, 3001))
}

// TestBlockValueValid exercises the block value rule branches.
func TestBlockValueValid(t *testing.T) {
	h := newTestHarness(t, 3000)

	coinbase := wire.NewMsgTx()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(50*1e8, p2pkhScript(0x99)))
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			PrevBlock: hashForHeight(3000),
			Timestamp: time.Unix(1700000000, 0),
		},
		Transactions: []*wire.MsgTx{coinbase},
	}

	expected := btcutil.Amount(50 * 1e8)

	// Synced, superblocks disabled: the minted amount governs.
	require.True(t, h.payments.IsBlockValueValid(block, expected, expected))
	require.False(t, h.payments.IsBlockValueValid(block, expected,
		expected+1))

	// Superblocks enabled and a budget height: the budget subsystem owns
	// the value.
	h.sporks.active[SporkEnableSuperblocks] = true
	h.budget.budgetBlocks[3001] = true
	require.True(t, h.payments.IsBlockValueValid(block, expected,
		expected+1))
	h.budget.budgetBlocks[3001] = false

	// Not synced: the first 100 slots of a budget cycle pass, the rest
	// fall back to the minted check.  Simnet's cycle is 144, and height
	// 3001 mod 144 is 121.
	h.sync.synced = false
	require.False(t, h.payments.IsBlockValueValid(block, expected,
		expected+1))
	require.True(t, h.payments.IsBlockValueValid(block, expected, expected))
}

// TestTreasuryBlockValue verifies the treasury output requirement and its
// spork gated enforcement.
func TestTreasuryBlockValue(t *testing.T) {
	h := newTestHarness(t, 3000)
	h.rewards.treasuryBlocks[3001] = true
	h.rewards.treasuryAward = btcutil.Amount(10 * 1e8)

	treasuryScript := p2pkhScript(0x77)
	h.params.TreasuryPayees = []chaincfg.TreasuryPayee{
		{Script: treasuryScript, Percent: 100},
	}

	// Enforcement is active for any block time past the spork value.
	h.sporks.values[SporkTreasuryEnforcement] = 1600000000

	expected := btcutil.Amount(50 * 1e8)

	makeBlock := func(outs ...*wire.TxOut) *wire.MsgBlock {
		coinbase := wire.NewMsgTx()
		coinbase.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
			Sequence:         wire.MaxTxInSequenceNum,
		})
		for _, out := range outs {
			coinbase.AddTxOut(out)
		}
		return &wire.MsgBlock{
			Header: wire.BlockHeader{
				PrevBlock: hashForHeight(3000),
				Timestamp: time.Unix(1700000000, 0),
			},
			Transactions: []*wire.MsgTx{coinbase},
		}
	}

	// Missing treasury output is rejected while enforcement is active.
	missing := makeBlock(wire.NewTxOut(int64(expected), p2pkhScript(0x99)))
	require.False(t, h.payments.IsBlockValueValid(missing, expected, expected))

	// The correct treasury output passes.
	good := makeBlock(
		wire.NewTxOut(int64(expected), p2pkhScript(0x99)),
		wire.NewTxOut(10*1e8, treasuryScript),
	)
	require.True(t, h.payments.IsBlockValueValid(good, expected, expected))

	// An inexact amount does not satisfy the treasury rule.
	inexact := makeBlock(
		wire.NewTxOut(int64(expected), p2pkhScript(0x99)),
		wire.NewTxOut(10*1e8+1, treasuryScript),
	)
	require.False(t, h.payments.IsBlockValueValid(inexact, expected, expected))

	// With the enforcement window in the future the block is logged but
	// accepted.
	h.sporks.values[SporkTreasuryEnforcement] = 1800000000
	require.True(t, h.payments.IsBlockValueValid(missing, expected, expected))
}
