// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"bytes"

	"github.com/simplicity-project/spld/wire"
)

// Payee is one nominated reward recipient at one height: a payment script,
// the masternode level the nomination is for, the nominated masternode's
// collateral input, and the number of distinct voters that nominated it.
type Payee struct {
	Script []byte
	Level  uint32
	Vin    wire.TxIn
	Votes  int
}

// BlockPayees is the tally of payees nominated for a single block height.
//
// Within one (height, level) pair a given script appears at most once;
// distinct scripts compete and accumulate votes independently.
type BlockPayees struct {
	Height int32
	Payees []*Payee
}

// NewBlockPayees returns an empty tally for the provided height.
func NewBlockPayees(height int32) *BlockPayees {
	return &BlockPayees{Height: height}
}

// AddPayee locates the payee with the given script and level, creating it
// if necessary, and adds increment to its vote count.
func (b *BlockPayees) AddPayee(level uint32, script []byte, vin wire.TxIn,
	increment int) {

	for _, payee := range b.Payees {
		if payee.Level == level && bytes.Equal(payee.Script, script) {
			payee.Votes += increment
			return
		}
	}

	b.Payees = append(b.Payees, &Payee{
		Script: script,
		Level:  level,
		Vin:    vin,
		Votes:  increment,
	})
}

// GetPayee returns the script of the payee with the most votes for the
// provided level.  Ties are broken toward the bytewise lowest script so the
// answer is deterministic regardless of insertion order.
func (b *BlockPayees) GetPayee(level uint32) ([]byte, bool) {
	var best *Payee
	for _, payee := range b.Payees {
		if payee.Level != level {
			continue
		}
		if best == nil || payee.Votes > best.Votes ||
			(payee.Votes == best.Votes &&
				bytes.Compare(payee.Script, best.Script) < 0) {

			best = payee
		}
	}

	if best == nil {
		return nil, false
	}
	return best.Script, true
}

// MaxVotes returns the largest vote count any payee of the provided level
// has accumulated, or 0 when the level has no payees.
func (b *BlockPayees) MaxVotes(level uint32) int {
	max := 0
	for _, payee := range b.Payees {
		if payee.Level == level && payee.Votes > max {
			max = payee.Votes
		}
	}
	return max
}
