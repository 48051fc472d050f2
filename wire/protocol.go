// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
)

const (
	// ProtocolVersion is the latest protocol version this package supports.
	ProtocolVersion uint32 = 70921

	// MinPeerProtoVersionBeforeEnforcement is the oldest protocol version
	// that peers are still allowed to run while the pay-updated-nodes
	// spork is inactive.
	MinPeerProtoVersionBeforeEnforcement uint32 = 70920
)

const (
	// MinMasternodeLevel is the lowest masternode service level.
	MinMasternodeLevel uint32 = 1

	// MaxMasternodeLevel is the highest masternode service level.  Legacy
	// winner messages that omit the level field are treated as votes for
	// this level.
	MaxMasternodeLevel uint32 = 3
)

// CurrencyNet represents which simplicity network a message belongs to.
type CurrencyNet uint32

// Constants used to indicate the message simplicity network.  They can also
// be used to seek to the next message when a stream's state is unknown, but
// this package does not provide that functionality since it's generally a
// better idea to simply disconnect clients that are misbehaving over TCP.
const (
	// MainNet represents the main simplicity network.
	MainNet CurrencyNet = 0x95a4c1d3

	// TestNet represents the test network.
	TestNet CurrencyNet = 0xb2f7e3a5

	// SimNet represents the simulation test network.
	SimNet CurrencyNet = 0x12141c16
)

// Map of simplicity networks back to their constant names for pretty printing.
var cnStrings = map[CurrencyNet]string{
	MainNet: "MainNet",
	TestNet: "TestNet",
	SimNet:  "SimNet",
}

// String returns the CurrencyNet in human-readable form.
func (n CurrencyNet) String() string {
	if s, ok := cnStrings[n]; ok {
		return s
	}

	return fmt.Sprintf("Unknown CurrencyNet (%d)", uint32(n))
}
