// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"github.com/simplicity-project/spld/wire"
)

// ProcessBlock elects and publishes the winners for the provided height if
// this node operates a masternode ranked high enough to vote.  It returns
// whether any votes were produced and relayed.
//
// One vote is produced per enabled masternode level, nominating the oldest
// masternode that had no payment yet, whose collateral is old enough, and
// which was active long enough (the registry's payment queue answers that).
// Each vote is admitted locally before it is relayed so the local tally
// stays ahead of the gossip.
func (p *Payments) ProcessBlock(height int32) bool {
	if p.cfg.ActiveMasternode == nil {
		return false
	}

	p.mtx.Lock()
	lastProcessed := p.lastProcessedHeight
	p.mtx.Unlock()
	if height <= lastProcessed {
		return false
	}

	rank := p.cfg.Registry.Rank(p.cfg.ActiveMasternode.PreviousOutPoint,
		height-voteRankDepth, p.MinPaymentsProto())
	if rank == -1 {
		log.Debugf("ProcessBlock - unknown masternode")
		return false
	}
	if rank > SignaturesTotal {
		log.Debugf("ProcessBlock - masternode not in the top %d (%d)",
			SignaturesTotal, rank)
		return false
	}

	log.Debugf("ProcessBlock start height %d - vin %s", height,
		p.cfg.ActiveMasternode.PreviousOutPoint.ShortString())

	key, err := p.cfg.SignKey()
	if err != nil {
		log.Debugf("ProcessBlock - error loading masternode key: %v", err)
		return false
	}

	var winners []*PaymentVote

	if p.cfg.Budget.IsBudgetPaymentBlock(height) {
		// Budget payment block; handled by the budgeting software.
	} else {
		for level := wire.MinMasternodeLevel; level <= wire.MaxMasternodeLevel; level++ {
			mn := p.cfg.Registry.NextInQueue(height, level, true)
			if mn == nil {
				log.Debugf("ProcessBlock failed to find masternode "+
					"level %d to pay", level)
				continue
			}

			payee := mn.PayeeScript()
			vote := NewPaymentVote(wire.NewMsgMNWinner(
				*p.cfg.ActiveMasternode, height, payee, level,
				mn.Vin))

			log.Debugf("ProcessBlock winner payee %s height %d "+
				"level %d", p.payeeAddr(payee), height, level)

			if err := vote.Sign(key); err != nil {
				log.Debugf("ProcessBlock - error signing winner "+
					"level %d: %v", level, err)
				continue
			}

			if err := p.AddWinningVote(vote); err != nil {
				log.Debugf("ProcessBlock - vote not admitted "+
					"level %d: %v", level, err)
				continue
			}

			winners = append(winners, vote)
		}
	}

	if len(winners) == 0 {
		return false
	}

	for _, vote := range winners {
		p.relayVote(vote)
	}

	p.mtx.Lock()
	p.lastProcessedHeight = height
	p.mtx.Unlock()
	return true
}

// LastProcessedHeight returns the highest height the local vote producer
// already published winners for.
func (p *Payments) LastProcessedHeight() int32 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.lastProcessedHeight
}
