// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simplicity-project/spld/wire"
)

// TestAddPayee verifies vote accumulation and the per (script, level)
// uniqueness of payee records.
func TestAddPayee(t *testing.T) {
	tally := NewBlockPayees(100)

	scriptA := p2pkhScript(0x01)
	scriptB := p2pkhScript(0x02)

	tally.AddPayee(1, scriptA, wire.TxIn{}, 1)
	tally.AddPayee(1, scriptA, wire.TxIn{}, 1)
	tally.AddPayee(1, scriptB, wire.TxIn{}, 1)

	// The same script at a different level is a distinct record.
	tally.AddPayee(2, scriptA, wire.TxIn{}, 1)

	require.Len(t, tally.Payees, 3)
	require.Equal(t, 2, tally.Payees[0].Votes)
	require.Equal(t, 1, tally.Payees[1].Votes)
	require.Equal(t, 1, tally.Payees[2].Votes)
}

// TestGetPayee verifies winner selection and its deterministic tie break.
func TestGetPayee(t *testing.T) {
	tally := NewBlockPayees(100)

	_, ok := tally.GetPayee(1)
	require.False(t, ok)

	low := p2pkhScript(0x01)
	high := p2pkhScript(0x02)

	tally.AddPayee(1, high, wire.TxIn{}, 3)
	tally.AddPayee(1, low, wire.TxIn{}, 2)

	payee, ok := tally.GetPayee(1)
	require.True(t, ok)
	require.Equal(t, high, payee)

	// Equal votes break toward the bytewise lowest script.
	tally.AddPayee(1, low, wire.TxIn{}, 1)
	payee, ok = tally.GetPayee(1)
	require.True(t, ok)
	require.Equal(t, low, payee)

	// Another level does not leak into the selection.
	tally.AddPayee(2, p2pkhScript(0x00), wire.TxIn{}, 10)
	payee, ok = tally.GetPayee(1)
	require.True(t, ok)
	require.Equal(t, low, payee)
}

// TestMaxVotes verifies the per level maximum vote lookup.
func TestMaxVotes(t *testing.T) {
	tally := NewBlockPayees(100)
	require.Zero(t, tally.MaxVotes(1))

	tally.AddPayee(1, p2pkhScript(0x01), wire.TxIn{}, 4)
	tally.AddPayee(1, p2pkhScript(0x02), wire.TxIn{}, 7)
	tally.AddPayee(2, p2pkhScript(0x03), wire.TxIn{}, 9)

	require.Equal(t, 7, tally.MaxVotes(1))
	require.Equal(t, 9, tally.MaxVotes(2))
	require.Zero(t, tally.MaxVotes(3))
}
