// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"

	"github.com/simplicity-project/spld/wire"
)

// TreasuryPayee describes one recipient of the treasury award along with the
// percentage of the award it receives.
type TreasuryPayee struct {
	// Script is the public key script the treasury output must pay to.
	Script []byte

	// Percent is the share of the treasury award, in whole percent.
	Percent int64
}

// Params defines a Simplicity network by its parameters.  These parameters
// may be used by Simplicity applications to differentiate networks as well
// as address and key formats.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.CurrencyNet

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// MasternodeCountDrift is the allowance, in nodes, applied on top of
	// the masternode count when validating masternode payment amounts.
	// It absorbs the skew between different peers' views of the
	// masternode list.
	MasternodeCountDrift int

	// BudgetCycleBlocks is the number of blocks between superblocks.
	BudgetCycleBlocks int32

	// TreasuryPayees lists the recipients of the treasury award on
	// treasury blocks.
	TreasuryPayees []TreasuryPayee

	// PubKeyHashAddrID is the magic byte for pay-to-pubkey-hash
	// addresses.
	PubKeyHashAddrID byte

	// ScriptHashAddrID is the magic byte for pay-to-script-hash
	// addresses.
	ScriptHashAddrID byte
}

// TreasuryPayeesAtHeight returns the treasury recipients in effect at the
// provided height.  The schedule is currently height independent, but the
// signature leaves room for future forks that rotate recipients.
func (p *Params) TreasuryPayeesAtHeight(height int32) []TreasuryPayee {
	return p.TreasuryPayees
}

// mainNetTreasuryScript is the mainnet treasury pay-to-pubkey-hash script.
var mainNetTreasuryScript = []byte{
	0x76, 0xa9, 0x14, // OP_DUP OP_HASH160 OP_DATA_20
	0x3b, 0x7e, 0x52, 0x11, 0xaa, 0xf1, 0xd0, 0x4c,
	0x9e, 0x0d, 0x7d, 0x63, 0xa8, 0x51, 0x2b, 0x6d,
	0x36, 0xfc, 0x9b, 0x7a,
	0x88, 0xac, // OP_EQUALVERIFY OP_CHECKSIG
}

// testNetTreasuryScript is the testnet treasury pay-to-pubkey-hash script.
var testNetTreasuryScript = []byte{
	0x76, 0xa9, 0x14,
	0x91, 0x2c, 0x04, 0x6e, 0x15, 0x27, 0xcc, 0x8c,
	0x63, 0xaa, 0xd1, 0x40, 0x19, 0x84, 0x5e, 0x02,
	0xf9, 0x31, 0x56, 0xdd,
	0x88, 0xac,
}

// MainNetParams defines the network parameters for the main Simplicity
// network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "11958",

	MasternodeCountDrift: 20,
	BudgetCycleBlocks:    43200,
	TreasuryPayees: []TreasuryPayee{
		{Script: mainNetTreasuryScript, Percent: 100},
	},

	PubKeyHashAddrID: 0x3f,
	ScriptHashAddrID: 0x12,
}

// TestNetParams defines the network parameters for the test Simplicity
// network.
var TestNetParams = Params{
	Name:        "testnet",
	Net:         wire.TestNet,
	DefaultPort: "21958",

	MasternodeCountDrift: 4,
	BudgetCycleBlocks:    144,
	TreasuryPayees: []TreasuryPayee{
		{Script: testNetTreasuryScript, Percent: 100},
	},

	PubKeyHashAddrID: 0x8b,
	ScriptHashAddrID: 0x13,
}

// SimNetParams defines the network parameters for the simulation test
// network.  This network is similar to the normal test network except it is
// intended for private use within a group of individuals doing simulation
// testing.
var SimNetParams = Params{
	Name:        "simnet",
	Net:         wire.SimNet,
	DefaultPort: "31958",

	MasternodeCountDrift: 4,
	BudgetCycleBlocks:    144,
	TreasuryPayees:       nil,

	PubKeyHashAddrID: 0x3f,
	ScriptHashAddrID: 0x7b,
}

var (
	// ErrDuplicateNet describes an error where the parameters for a
	// network could not be set due to the network already being a
	// standard network or previously-registered via this package.
	ErrDuplicateNet = errors.New("duplicate network")
)

var registeredNets = map[wire.CurrencyNet]struct{}{
	MainNetParams.Net: {},
	TestNetParams.Net: {},
	SimNetParams.Net:  {},
}

// Register registers the network parameters for a Simplicity network.  This
// may error with ErrDuplicateNet if the network is already registered
// (either due to a previous Register call, or the network being one of the
// default networks).
//
// Network parameters should be registered into this package by a main
// package as early as possible.  The package only records which networks
// are registered; it provides no lookup of parameters by network.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = struct{}{}
	return nil
}
