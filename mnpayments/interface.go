// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/simplicity-project/spld/chaincfg"
	"github.com/simplicity-project/spld/wire"
)

// Masternode describes one entry of the masternode registry as seen by the
// payment subsystem.
type Masternode struct {
	// Vin is the collateral input that identifies the masternode.
	Vin wire.TxIn

	// Level is the masternode service level.
	Level uint32

	// ProtocolVersion is the protocol version the masternode declared.
	ProtocolVersion uint32

	// CollateralKey is the public key the collateral pays to.  Reward
	// payments are made to a pay-to-pubkey script over this key.
	CollateralKey *btcec.PublicKey

	// SigningKey is the masternode identity key votes are signed with.
	SigningKey *btcec.PublicKey
}

// PayeeScript returns the pay-to-pubkey script rewards for this masternode
// are paid to.
func (mn *Masternode) PayeeScript() []byte {
	return payToPubKeyScript(mn.CollateralKey)
}

// Chain provides access to the subset of chain state the subsystem needs.
//
// Best snapshots the current tip without blocking; ok reports false when
// the chain state lock could not be acquired immediately, in which case the
// caller returns a benign not-ready result instead of stalling the network
// thread.
type Chain interface {
	Best() (height int32, hash *chainhash.Hash, ok bool)
	HeightByHash(hash *chainhash.Hash) (int32, bool)
	HashByHeight(height int32) (*chainhash.Hash, bool)
}

// Registry is the masternode list oracle.  Rank returns the deterministic
// position of a masternode among the peers of its level at the reference
// height, 1 being the best, or -1 when the masternode cannot be ranked.
type Registry interface {
	Find(outpoint wire.OutPoint) *Masternode
	FindByScript(pkScript []byte) *Masternode
	Rank(outpoint wire.OutPoint, refHeight int32, minProtocol uint32) int
	Count() int
	StableCount() int
	CountEnabled(level uint32) int
	CountEnabledByLevels() map[uint32]int
	NextInQueue(height int32, level uint32, filterRecent bool) *Masternode
	Current(level uint32, minProtocol uint32) *Masternode
	DsegUpdate(peer Peer)
	AskForMN(peer Peer, outpoint wire.OutPoint)
}

// TxValidationStatus is the result of a budget transaction check.
type TxValidationStatus int

// Possible budget transaction check outcomes.
const (
	TxStatusInvalid TxValidationStatus = iota
	TxStatusValid
	TxStatusDoublePayment
	TxStatusVoteThreshold
)

// Budget is the budget/superblock subsystem.  Block construction and
// validation on budget and treasury heights is delegated to it wholesale.
type Budget interface {
	IsBudgetPaymentBlock(height int32) bool
	IsTransactionValid(tx *wire.MsgTx, height int32) TxValidationStatus
	FillBlockPayee(tx *wire.MsgTx, fees btcutil.Amount, proofOfStake bool, blockValue btcutil.Amount)
	FillTreasuryPayee(tx *wire.MsgTx, fees btcutil.Amount, proofOfStake bool, blockValue btcutil.Amount)
	RequiredPaymentsString(height int32) string
}

// SporkID identifies a runtime consensus feature flag.
type SporkID uint32

// Spork identifiers recognized by the subsystem.
const (
	SporkMasternodePaymentEnforcement SporkID = 10008
	SporkBudgetEnforcement            SporkID = 10009
	SporkPayUpdatedNodes              SporkID = 10010
	SporkEnableSuperblocks            SporkID = 10013
	SporkTreasuryEnforcement          SporkID = 10017
	SporkNewMasternodeTiers           SporkID = 10018
)

// Sporks is the spork oracle.
type Sporks interface {
	IsActive(id SporkID) bool
	Value(id SporkID) int64
}

// RewardSchedule is the reward curve oracle.  MasternodePayment returns the
// amount a masternode of the given level must be paid at the given height;
// driftCount widens the tolerance for peer-view skew of the masternode
// count.
type RewardSchedule interface {
	BlockValue(height int32, proofOfStake bool) btcutil.Amount
	MasternodePayment(height int32, blockValue btcutil.Amount, proofOfStake bool,
		level uint32, driftCount int, zerocoinStake bool) btcutil.Amount
	TreasuryAward(height int32) btcutil.Amount
	IsTreasuryBlock(height int32) bool
}

// SyncTracker is the initial-sync coordinator.  AddedWinner marks a vote
// hash as seen during sync; EvictWinner drops the marker once the vote is
// pruned.
type SyncTracker interface {
	IsBlockchainSynced() bool
	IsSynced() bool
	AddedWinner(hash *chainhash.Hash)
	EvictWinner(hash *chainhash.Hash)
}

// Peer represents a remote peer as far as this subsystem is concerned.
type Peer interface {
	ID() int32
	Addr() string
	ProtocolVersion() uint32
	PushInventory(inv *wire.InvVect)
	PushMessage(msg wire.Message)
	Misbehaving(score int)
}

// PeerNotifier relays inventory advertisements to all connected peers.
type PeerNotifier interface {
	RelayInventory(inv *wire.InvVect)
}

// Config houses the collaborators and local node settings the subsystem
// needs.  All oracle fields must be set unless noted otherwise.
type Config struct {
	// ChainParams identifies the network the subsystem operates on.
	ChainParams *chaincfg.Params

	// Chain, Registry, Budget, Sporks, Rewards, and Sync are the
	// external oracles described on their interfaces.
	Chain    Chain
	Registry Registry
	Budget   Budget
	Sporks   Sporks
	Rewards  RewardSchedule
	Sync     SyncTracker

	// Notifier relays accepted votes.  It may be nil in which case
	// accepted votes are not advertised.
	Notifier PeerNotifier

	// LiteMode disables all masternode message processing.
	LiteMode bool

	// ActiveMasternode is the collateral input of the local masternode
	// when this node operates one, or nil.
	ActiveMasternode *wire.TxIn

	// SignKey loads the local masternode operator key.  It is only
	// consulted when ActiveMasternode is set.
	SignKey func() (*btcec.PrivateKey, error)
}
