// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"

	"github.com/simplicity-project/spld/wire"
)

// ProcessWinnerMessage handles one inbound mnw message from a peer.  It
// performs the full admission pipeline: sync and mode gates, peer protocol
// floor, payee resolution (with legacy backfill), dedup, window, voter
// validity, one-vote-per-height rule, signature, and finally store
// admission with relay.
//
// A nil return means the vote was admitted and relayed.  All failures are
// RuleErrors; only the offenses the original protocol scores directly
// (invalid signature and far-out-of-rank, both only once synced) assess
// peer misbehavior here, the rest surface their suggested score through
// the error code for the transport to apply.
func (p *Payments) ProcessWinnerMessage(peer Peer, msg *wire.MsgMNWinner) error {
	if !p.cfg.Sync.IsBlockchainSynced() {
		return ruleError(ErrNotSynced, "blockchain not synced")
	}
	if p.cfg.LiteMode {
		// All masternode related functionality is disabled.
		return nil
	}

	if peer.ProtocolVersion() < p.MinPaymentsProto() {
		return nil
	}

	height, ok := p.tipHeight()
	if !ok {
		return ruleError(ErrNotReady, "chain state busy")
	}

	vote := NewPaymentVote(msg)

	// Resolve the nominated payee.  A zero payee vin means the vote came
	// from an old version, in which case the level and vin are backfilled
	// from the registry by payee script.
	var payeeNode *Masternode
	if isZeroTxIn(&msg.PayeeVin) {
		payeeNode = p.cfg.Registry.FindByScript(msg.PayeeScript)
		if payeeNode != nil {
			msg.PayeeLevel = payeeNode.Level
			msg.PayeeVin = payeeNode.Vin
		}
	} else {
		payeeNode = p.cfg.Registry.Find(msg.PayeeVin.PreviousOutPoint)
	}

	if payeeNode == nil {
		log.Debugf("mnw - unknown payee from peer=%d ip=%s - %x",
			peer.ID(), peer.Addr(), msg.PayeeScript)

		// Try to find the missing masternode.  DsegUpdate only asks
		// once every three hours, and the local asked cache keeps
		// repeated offenders from hammering even that path.
		if isZeroTxIn(&msg.PayeeVin) {
			p.cfg.Registry.DsegUpdate(peer)
		} else {
			p.askForNode(peer, msg.PayeeVin.PreviousOutPoint)
		}

		return ruleError(ErrUnknownPayee, "unknown payee masternode")
	}

	logString := fmt.Sprintf("mnw - peer=%d ip=%s v=%d winHeight=%d vin=%s",
		peer.ID(), peer.Addr(), peer.ProtocolVersion(), msg.BlockHeight,
		msg.VoterVin.PreviousOutPoint.ShortString())

	p.mtx.Lock()
	_, seen := p.votes[*vote.Hash()]
	p.mtx.Unlock()
	if seen {
		log.Debugf("%s - already seen", logString)
		p.cfg.Sync.AddedWinner(vote.Hash())
		return ruleError(ErrDuplicateVote, "vote already seen")
	}

	firstBlock := height - int32(float64(
		p.cfg.Registry.CountEnabled(msg.PayeeLevel))*1.25)
	if msg.BlockHeight < firstBlock ||
		msg.BlockHeight > height+voteFutureWindow {

		log.Debugf("%s - out of range", logString)
		return ruleError(ErrStaleWindow, fmt.Sprintf("vote height %d "+
			"outside [%d, %d]", msg.BlockHeight, firstBlock,
			height+voteFutureWindow))
	}

	if err := p.checkVoteValid(peer, vote); err != nil {
		log.Debugf("mnw - invalid message from peer=%d ip=%s - %v",
			peer.ID(), peer.Addr(), err)
		return err
	}

	if !p.CanVote(msg.VoterVin.PreviousOutPoint, msg.BlockHeight,
		msg.PayeeLevel) {

		log.Debugf("%s - already voted", logString)
		return ruleError(ErrAlreadyVoted, "masternode already voted")
	}

	voter := p.cfg.Registry.Find(msg.VoterVin.PreviousOutPoint)
	if voter == nil || vote.CheckSignature(voter.SigningKey) != nil {
		if p.cfg.Sync.IsSynced() {
			log.Infof("mnw - invalid signature from peer=%d ip=%s",
				peer.ID(), peer.Addr())
			peer.Misbehaving(20)
		}
		// It could just be a non-synced masternode.
		p.askForNode(peer, msg.VoterVin.PreviousOutPoint)
		return ruleError(ErrBadSignature, "invalid vote signature")
	}

	log.Debugf("%s - winning vote", logString)
	log.Tracef("mnw vote detail: %v", newLogClosure(func() string {
		return spew.Sdump(msg)
	}))

	if err := p.AddWinningVote(vote); err != nil {
		return err
	}

	p.relayVote(vote)
	p.cfg.Sync.AddedWinner(vote.Hash())
	return nil
}

// checkVoteValid validates the voter of a payment vote: the voter must be a
// known masternode, run a recent enough protocol, and be ranked in the top
// SignaturesTotal of its level at the reference height.
func (p *Payments) checkVoteValid(peer Peer, vote *PaymentVote) error {
	msg := vote.MsgVote()

	voter := p.cfg.Registry.Find(msg.VoterVin.PreviousOutPoint)
	if voter == nil {
		p.askForNode(peer, msg.VoterVin.PreviousOutPoint)
		return ruleError(ErrUnknownVoter, fmt.Sprintf(
			"unknown masternode %s",
			msg.VoterVin.PreviousOutPoint.ShortString()))
	}

	if voter.ProtocolVersion < p.MinPaymentsProto() {
		return ruleError(ErrProtocolTooOld, fmt.Sprintf(
			"masternode protocol too old %d - req %d",
			voter.ProtocolVersion, p.MinPaymentsProto()))
	}

	rank := p.cfg.Registry.Rank(msg.VoterVin.PreviousOutPoint,
		msg.BlockHeight-voteRankDepth, p.MinPaymentsProto())
	if rank == -1 {
		return ruleError(ErrUnknownVoter, fmt.Sprintf(
			"unknown masternode (rank==-1) %s",
			msg.VoterVin.PreviousOutPoint.ShortString()))
	}

	if rank > SignaturesTotal {
		// It's common for masternodes to mistakenly think they are in
		// the top 10.  Don't print all of these messages or punish
		// them unless they're way off.
		if rank > SignaturesTotal*2 {
			if p.cfg.Sync.IsSynced() && peer != nil {
				peer.Misbehaving(20)
			}
			return ruleError(ErrBadRank, fmt.Sprintf(
				"masternode not in the top %d (%d)",
				SignaturesTotal*2, rank))
		}
		return ruleError(ErrBadRank, fmt.Sprintf(
			"masternode not in the top %d (%d)", SignaturesTotal,
			rank))
	}

	return nil
}

// askForNode requests the masternode identified by the outpoint from the
// peer unless it was recently requested already.
func (p *Payments) askForNode(peer Peer, outpoint wire.OutPoint) {
	key := outpoint.ShortString()
	if p.askedNodes.Contains(key) {
		return
	}
	p.askedNodes.Add(key)
	p.cfg.Registry.AskForMN(peer, outpoint)
}

// relayVote advertises an admitted vote to all connected peers.
func (p *Payments) relayVote(vote *PaymentVote) {
	if p.cfg.Notifier == nil {
		return
	}
	inv := wire.NewInvVect(wire.InvTypeMasternodeWinner, vote.Hash())
	p.cfg.Notifier.RelayInventory(inv)
}

// Sync pushes the recent portion of the vote table to a peer that is
// catching up, followed by an ssc marker carrying the number of items
// pushed.  The per-level depth is bounded both by the peer's requested
// count and by 1.25 times the enabled masternode count of the level.
func (p *Payments) Sync(peer Peer, countNeeded int32) {
	height, ok := p.tipHeight()
	if !ok {
		return
	}

	counts := p.cfg.Registry.CountEnabledByLevels()
	for level, count := range counts {
		capped := int32(float64(count) * 1.25)
		if countNeeded < capped {
			capped = countNeeded
		}
		counts[level] = int(capped)
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	invCount := int32(0)
	for _, vote := range p.votes {
		msg := vote.MsgVote()
		push := msg.BlockHeight >= height-int32(counts[msg.PayeeLevel]) &&
			msg.BlockHeight <= height+voteFutureWindow
		if !push {
			continue
		}

		peer.PushInventory(wire.NewInvVect(wire.InvTypeMasternodeWinner,
			vote.Hash()))
		invCount++
	}

	peer.PushMessage(wire.NewMsgSyncStatusCount(wire.SyncItemMNWinner,
		invCount))
}

// isZeroTxIn returns whether the transaction input is the zero value, which
// is how legacy votes encode an absent payee vin.
func isZeroTxIn(txIn *wire.TxIn) bool {
	return txIn.PreviousOutPoint.Hash == (chainhash.Hash{}) &&
		txIn.PreviousOutPoint.Index == 0 &&
		len(txIn.SignatureScript) == 0 &&
		txIn.Sequence == 0
}
