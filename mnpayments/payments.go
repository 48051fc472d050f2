// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/lru"

	"github.com/simplicity-project/spld/wire"
)

const (
	// SignaturesRequired is the number of distinct votes a payee needs
	// before it becomes enforceable against blocks.
	SignaturesRequired = 6

	// SignaturesTotal is the worst rank a masternode may hold, at the
	// vote reference height, for its votes to be accepted.  Voters
	// ranked in (SignaturesTotal, 2*SignaturesTotal] are tolerated
	// silently; anything beyond that is reportable misbehavior.
	SignaturesTotal = 10

	// voteRankDepth is how far below the vote height the ranking
	// reference block sits.  Ranking against an older block keeps the
	// vote outcome stable across short reorgs near the tip.
	voteRankDepth = 100

	// voteFutureWindow is how far above the current tip votes are
	// accepted and retained.
	voteFutureWindow = 20

	// scheduleLookahead is how many blocks past the tip IsScheduled
	// inspects.  Looking ahead up to 8 blocks allows for propagation of
	// the latest two winners.
	scheduleLookahead = 8

	// minRetainedDepth is the floor on the retention horizon below the
	// tip regardless of how small the masternode list is.
	minRetainedDepth = 1000

	// askedNodesLimit bounds the cache of masternodes that were recently
	// requested from peers so repeated unknown-voter votes do not flood
	// the registry fetch path.
	askedNodesLimit = 1024
)

// Payments is the election store together with the validator, builder,
// gossip, and producer entry points that operate on it.  It is safe for
// concurrent use by multiple goroutines.
type Payments struct {
	cfg *Config

	// mtx guards the three table fields below.  The votes and tallies
	// tables are always mutated together under it, which makes the
	// paired acquisition of the two logical election locks structural.
	mtx       sync.Mutex
	votes     map[chainhash.Hash]*PaymentVote
	blocks    map[int32]*BlockPayees
	lastVotes map[string]struct{}

	// lastProcessedHeight is the highest height the local vote producer
	// already published winners for.
	lastProcessedHeight int32

	// askedNodes tracks masternodes recently requested from peers.
	askedNodes lru.Cache
}

// New returns a new masternode payments subsystem instance using the
// provided configuration.
func New(cfg *Config) *Payments {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Payments{
		cfg:        cfg,
		votes:      make(map[chainhash.Hash]*PaymentVote),
		blocks:     make(map[int32]*BlockPayees),
		lastVotes:  make(map[string]struct{}),
		askedNodes: lru.NewCache(askedNodesLimit),
	}
}

// voteKey returns the occupancy key enforcing the one vote per voter, per
// height, per level rule.
func voteKey(outpoint wire.OutPoint, height int32, level uint32) string {
	return fmt.Sprintf("%s-%d-%d", outpoint.ShortString(), height, level)
}

// tipHeight snapshots the current chain tip height.  The boolean return
// mirrors a failed try-lock on the chain state: callers translate false
// into a benign not-ready result instead of blocking.
func (p *Payments) tipHeight() (int32, bool) {
	if p.cfg.Chain == nil {
		return 0, false
	}
	height, _, ok := p.cfg.Chain.Best()
	return height, ok
}

// CanVote returns whether the store has room for a vote from the provided
// voter for the provided height and level, per the one vote per voter, per
// height, per level rule.
func (p *Payments) CanVote(outpoint wire.OutPoint, height int32, level uint32) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	_, occupied := p.lastVotes[voteKey(outpoint, height, level)]
	return !occupied
}

// AddWinningVote admits a vote into the election store.  The vote must have
// passed the caller's signature, rank, and window checks.  On success both
// tables are updated atomically: the vote is inserted and the matching
// tally's payee record is credited.
func (p *Payments) AddWinningVote(vote *PaymentVote) error {
	msg := vote.MsgVote()

	// The ranking reference block must exist before the vote can mean
	// anything.
	if p.cfg.Chain == nil {
		return ruleError(ErrNotReady, "no chain view")
	}
	if _, ok := p.cfg.Chain.HashByHeight(msg.BlockHeight - voteRankDepth); !ok {
		str := fmt.Sprintf("reference block %d not known",
			msg.BlockHeight-voteRankDepth)
		return ruleError(ErrUnknownBlock, str)
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	hash := *vote.Hash()
	if _, exists := p.votes[hash]; exists {
		return ruleError(ErrDuplicateVote, "vote already known")
	}

	key := voteKey(msg.VoterVin.PreviousOutPoint, msg.BlockHeight,
		msg.PayeeLevel)
	if _, occupied := p.lastVotes[key]; occupied {
		str := fmt.Sprintf("masternode %s already voted for height %d "+
			"level %d", msg.VoterVin.PreviousOutPoint.ShortString(),
			msg.BlockHeight, msg.PayeeLevel)
		return ruleError(ErrAlreadyVoted, str)
	}

	p.votes[hash] = vote
	p.lastVotes[key] = struct{}{}

	tally, exists := p.blocks[msg.BlockHeight]
	if !exists {
		tally = NewBlockPayees(msg.BlockHeight)
		p.blocks[msg.BlockHeight] = tally
	}
	tally.AddPayee(msg.PayeeLevel, msg.PayeeScript, msg.PayeeVin, 1)

	return nil
}

// GetBlockPayee returns the script of the winning payee for the provided
// height and level, if one is known.
func (p *Payments) GetBlockPayee(height int32, level uint32) ([]byte, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	tally, exists := p.blocks[height]
	if !exists {
		return nil, false
	}
	return tally.GetPayee(level)
}

// IsScheduled returns whether the provided masternode is the winning payee
// of its level at any height in the near lookahead window, excluding
// notHeight.  The vote producer uses it to avoid publishing redundant
// winners.
func (p *Payments) IsScheduled(mn *Masternode, notHeight int32) bool {
	height, ok := p.tipHeight()
	if !ok {
		return false
	}

	mnScript := mn.PayeeScript()

	p.mtx.Lock()
	defer p.mtx.Unlock()

	for h := height; h <= height+scheduleLookahead; h++ {
		if h == notHeight {
			continue
		}
		tally, exists := p.blocks[h]
		if !exists {
			continue
		}
		if payee, ok := tally.GetPayee(mn.Level); ok &&
			string(payee) == string(mnScript) {

			return true
		}
	}

	return false
}

// IsTransactionValid returns whether the provided reward transaction pays
// every level that reached quorum at the provided height.  A height with no
// tally, or a tally without quorum, accepts any transaction since in that
// case the longest chain decides.
func (p *Payments) IsTransactionValid(tx *wire.MsgTx, height int32,
	blockValue btcutil.Amount, proofOfStake bool) bool {

	p.mtx.Lock()
	defer p.mtx.Unlock()

	tally, exists := p.blocks[height]
	if !exists {
		return true
	}
	return p.tallyValid(tally, tx, height, blockValue, proofOfStake)
}

// tallyValid performs the per-tally reward transaction check.  It must be
// called with the store mutex held.
func (p *Payments) tallyValid(tally *BlockPayees, tx *wire.MsgTx,
	height int32, blockValue btcutil.Amount, proofOfStake bool) bool {

	payNewTiers := p.cfg.Sporks.IsActive(SporkNewMasternodeTiers)

	// The drift allowance accounts for the fact that all peers do not see
	// the same masternode count.  Only an increased count matters: as the
	// count increases the required payment decreases, and the check below
	// is payment >= required.
	var driftCount int
	if p.cfg.Sporks.IsActive(SporkMasternodePaymentEnforcement) {
		driftCount = p.cfg.Registry.StableCount() +
			p.cfg.ChainParams.MasternodeCountDrift
	} else {
		driftCount = p.cfg.Registry.Count() +
			p.cfg.ChainParams.MasternodeCountDrift
	}

	// Levels with at least one payee holding quorum, keyed to the largest
	// vote count seen for the level.
	maxSignatures := make(map[uint32]int)
	for _, payee := range tally.Payees {
		if payee.Votes < SignaturesRequired ||
			(!payNewTiers && payee.Level != wire.MaxMasternodeLevel) {

			continue
		}
		if payee.Votes > maxSignatures[payee.Level] {
			maxSignatures[payee.Level] = payee.Votes
		}
	}

	// Without quorum on any level, approve whichever is the longest chain.
	if len(maxSignatures) == 0 {
		log.Debugf("Not enough signatures at height %d, accepting",
			height)
		return true
	}

	var payeesPossible []string
	for _, payee := range tally.Payees {
		if payee.Votes < SignaturesRequired ||
			(!payNewTiers && payee.Level != wire.MaxMasternodeLevel) {

			continue
		}

		required := p.cfg.Rewards.MasternodePayment(height, blockValue,
			proofOfStake, payee.Level, driftCount,
			tx.HasZerocoinSpendInputs())

		found := false
		for _, out := range tx.TxOut {
			if string(out.PkScript) != string(payee.Script) {
				continue
			}
			if btcutil.Amount(out.Value) >= required {
				found = true
				break
			}
			log.Debugf("Masternode payment is out of drift range. "+
				"Paid=%v Min=%v", btcutil.Amount(out.Value), required)
		}

		if found {
			delete(maxSignatures, payee.Level)
			if len(maxSignatures) == 0 {
				return true
			}
			continue
		}

		payeesPossible = append(payeesPossible,
			fmt.Sprintf("%d:%s", payee.Level, p.payeeAddr(payee.Script)))
	}

	log.Debugf("Missing required payment to %s at height %d",
		strings.Join(payeesPossible, ", "), height)
	return false
}

// IsBlockValueValid returns whether the minted amount of the provided block
// is acceptable given the expected block value, and, on treasury heights,
// whether the treasury award outputs are present.
func (p *Payments) IsBlockValueValid(block *wire.MsgBlock,
	expected, minted btcutil.Amount) bool {

	tipHeight, tipHash, ok := p.bestTip()
	if !ok {
		return true
	}

	var height int32
	if *tipHash == block.Header.PrevBlock {
		height = tipHeight + 1
	} else if h, ok := p.cfg.Chain.HeightByHash(&block.Header.PrevBlock); ok {
		// Out of order.
		height = h + 1
	}

	if height == 0 {
		log.Debugf("IsBlockValueValid: couldn't find previous block")
	}

	if p.cfg.Rewards.IsTreasuryBlock(height) {
		txNew := rewardTx(block)
		payees := p.cfg.ChainParams.TreasuryPayeesAtHeight(height)
		award := p.cfg.Rewards.TreasuryAward(height)

		found := 0
		for _, payee := range payees {
			for _, out := range txNew.TxOut {
				if string(out.PkScript) == string(payee.Script) &&
					out.Value == int64(award)*payee.Percent/100 {

					found++
					break
				}
			}
		}

		if found != len(payees) {
			log.Debugf("Invalid treasury payment detected at height %d",
				height)
			if block.Header.Timestamp.Unix() >
				p.cfg.Sporks.Value(SporkTreasuryEnforcement) {

				return false
			}
			log.Debugf("Treasury enforcement is not enabled, " +
				"accept anyway")
		} else {
			log.Debugf("Valid treasury payment detected at height %d",
				height)
		}
	}

	if !p.cfg.Sync.IsSynced() {
		// There is no budget data to use to check anything.  Super
		// blocks will always be on these blocks, max 100 per
		// budgeting cycle.
		if height%p.cfg.ChainParams.BudgetCycleBlocks < 100 {
			return true
		}
		return minted <= expected
	}

	// We're synced and have data so check the budget schedule.
	if !p.cfg.Sporks.IsActive(SporkEnableSuperblocks) {
		return minted <= expected
	}

	if p.cfg.Budget.IsBudgetPaymentBlock(height) {
		// The value of the block is evaluated in CheckBlock.
		return true
	}

	return minted <= expected
}

// bestTip snapshots the tip height together with its hash.
func (p *Payments) bestTip() (int32, *chainhash.Hash, bool) {
	if p.cfg.Chain == nil {
		return 0, nil, false
	}
	return p.cfg.Chain.Best()
}

// rewardTx returns the transaction that carries the block reward: the
// coinstake for proof of stake blocks and the coinbase otherwise.
func rewardTx(block *wire.MsgBlock) *wire.MsgTx {
	if block.IsProofOfStake() {
		return block.Transactions[1]
	}
	return block.Transactions[0]
}

// IsBlockPayeeValid returns whether the reward transaction of the provided
// block honors the payment consensus at the provided height.  Budget blocks
// are delegated to the budget subsystem and treasury blocks are covered by
// the value check, so only plain heights run the masternode tally check.
func (p *Payments) IsBlockPayeeValid(block *wire.MsgBlock, height int32) bool {
	if !p.cfg.Sync.IsSynced() {
		// There is no budget data to use to check anything; find the
		// longest chain.
		log.Debugf("Client not synced, skipping block payee checks")
		return true
	}

	proofOfStake := block.IsProofOfStake()
	txNew := rewardTx(block)

	if p.cfg.Sporks.IsActive(SporkEnableSuperblocks) &&
		p.cfg.Budget.IsBudgetPaymentBlock(height) {

		switch p.cfg.Budget.IsTransactionValid(txNew, height) {
		case TxStatusValid:
			return true

		case TxStatusInvalid:
			log.Debugf("Invalid budget payment detected at height %d",
				height)
			if p.cfg.Sporks.IsActive(SporkBudgetEnforcement) {
				return false
			}
			log.Debugf("Budget enforcement is disabled, " +
				"accepting block")
		}

		// A double budget payment or a missed vote threshold falls
		// through: a masternode gets the payment for this block.
	}

	if p.cfg.Rewards.IsTreasuryBlock(height) {
		return true
	}

	blockValue := p.cfg.Rewards.BlockValue(height, proofOfStake)
	if p.IsTransactionValid(txNew, height, blockValue, proofOfStake) {
		return true
	}
	log.Debugf("Invalid mn payment detected at height %d", height)

	if p.cfg.Sporks.IsActive(SporkMasternodePaymentEnforcement) {
		return false
	}
	log.Debugf("Masternode payment enforcement is disabled, " +
		"accepting block")
	return true
}

// FillBlockPayee appends the reward outputs for the next block to the
// transaction under construction.  Budget and treasury heights are
// delegated to the budget subsystem; all other heights receive masternode
// payments per level.
func (p *Payments) FillBlockPayee(tx *wire.MsgTx, fees btcutil.Amount,
	proofOfStake, zerocoinStake bool, blockValue btcutil.Amount) {

	tipHeight, ok := p.tipHeight()
	if !ok {
		return
	}
	nextHeight := tipHeight + 1

	switch {
	case p.cfg.Sporks.IsActive(SporkEnableSuperblocks) &&
		p.cfg.Budget.IsBudgetPaymentBlock(nextHeight):

		p.cfg.Budget.FillBlockPayee(tx, fees, proofOfStake, blockValue)

	case p.cfg.Rewards.IsTreasuryBlock(nextHeight):
		p.cfg.Budget.FillTreasuryPayee(tx, fees, proofOfStake, blockValue)

	default:
		p.fillMasternodePayee(tx, nextHeight, proofOfStake,
			zerocoinStake, blockValue)
	}
}

// fillMasternodePayee appends one payment output per enabled masternode
// level and charges the payments back against the block's own outputs so
// that total value is preserved.
func (p *Payments) fillMasternodePayee(tx *wire.MsgTx, nextHeight int32,
	proofOfStake, zerocoinStake bool, blockValue btcutil.Amount) {

	payNewTiers := p.cfg.Sporks.IsActive(SporkNewMasternodeTiers)

	level := wire.MinMasternodeLevel
	outputs := 1
	var paymentsTotal btcutil.Amount

	startLevel := wire.MaxMasternodeLevel
	if payNewTiers {
		startLevel = wire.MinMasternodeLevel
	}

	for mnLevel := startLevel; mnLevel <= wire.MaxMasternodeLevel; mnLevel++ {
		hasPayment := true

		payee, ok := p.GetBlockPayee(nextHeight, mnLevel)
		if !ok {
			// No winner detected; pay the currently best ranked
			// masternode of the level instead.
			winningNode := p.cfg.Registry.Current(mnLevel,
				wire.MinPeerProtoVersionBeforeEnforcement)
			if winningNode != nil {
				payee = winningNode.PayeeScript()
			} else {
				log.Debugf("CreateNewBlock: failed to detect "+
					"masternode level %d to pay", mnLevel)
				hasPayment = false
			}
		}

		payment := p.cfg.Rewards.MasternodePayment(nextHeight,
			blockValue, proofOfStake, mnLevel, 0, zerocoinStake)

		if !hasPayment {
			// The output slot counter advances even for a level
			// without a payee.
			level++
			continue
		}

		if proofOfStake {
			// For proof of stake vout[0] must be null.  The stake
			// reward can be split into many different outputs, so
			// the current output count is used to align with
			// several different cases.  An additional output is
			// appended as the masternode payment.
			i := len(tx.TxOut)
			if level == 1 {
				outputs = i - 1
			}
			tx.AddTxOut(wire.NewTxOut(int64(payment), payee))

			// Subtract the masternode payment from the stake
			// reward.
			if !tx.TxOut[1].IsZerocoinMint() {
				if outputs == 1 {
					// Majority of cases; do it quick and
					// move on.
					tx.TxOut[1].Value -= int64(payment)
				} else if outputs > 1 {
					// Special case: the stake is split
					// between multiple outputs.
					split := int64(payment) / int64(outputs)
					remainder := int64(payment) -
						split*int64(outputs)
					for j := 1; j <= outputs; j++ {
						tx.TxOut[j].Value -= split
					}
					// In case it's not an even division,
					// take the last bit of dust from the
					// last one.
					tx.TxOut[outputs].Value -= remainder
				}
			}
		} else {
			for len(tx.TxOut) < int(level)+1 {
				tx.AddTxOut(&wire.TxOut{})
			}
			tx.TxOut[level] = wire.NewTxOut(int64(payment), payee)
			if level == 1 {
				tx.TxOut[0].Value = int64(blockValue - payment)
			} else {
				tx.TxOut[0].Value -= int64(payment)
			}
		}

		paymentsTotal += payment
		level++

		log.Debugf("Masternode payment of %v to %s", payment,
			p.payeeAddr(payee))
	}

	if paymentsTotal > 0 {
		log.Debugf("Masternode payments at height %d total %v",
			nextHeight, paymentsTotal)
	}
}

// MinPaymentsProto returns the minimum protocol version a peer or voter
// must run for its payment messages to be accepted.  The floor is raised to
// the current protocol once the pay-updated-nodes spork activates.
func (p *Payments) MinPaymentsProto() uint32 {
	if p.cfg.Sporks.IsActive(SporkPayUpdatedNodes) {
		return wire.ProtocolVersion
	}
	return wire.MinPeerProtoVersionBeforeEnforcement
}

// RequiredPaymentsString returns a human-readable summary of the payments
// required at the provided height: the budget subsystem's summary on budget
// heights, otherwise one "address:level:votes" entry per nominated payee.
func (p *Payments) RequiredPaymentsString(height int32) string {
	if p.cfg.Sporks.IsActive(SporkEnableSuperblocks) &&
		p.cfg.Budget.IsBudgetPaymentBlock(height) {

		return p.cfg.Budget.RequiredPaymentsString(height)
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	tally, exists := p.blocks[height]
	if !exists {
		return "Unknown"
	}

	var entries []string
	for _, payee := range tally.Payees {
		entries = append(entries, fmt.Sprintf("%s:%d:%d",
			p.payeeAddr(payee.Script), payee.Level, payee.Votes))
	}
	if len(entries) == 0 {
		return "Unknown"
	}
	return strings.Join(entries, ", ")
}

// CleanPaymentList prunes votes and tallies whose height fell outside the
// retention horizon around the current tip.  Sync seen-markers of pruned
// votes are evicted alongside.
func (p *Payments) CleanPaymentList() {
	height, ok := p.tipHeight()
	if !ok {
		return
	}

	// Keep 1.25 cycles of winners (1.25 times the masternode count), but
	// never fewer than minRetainedDepth blocks.
	limit := int32(float64(p.cfg.Registry.Count()) * 1.25)
	if limit < minRetainedDepth {
		limit = minRetainedDepth
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	for hash, vote := range p.votes {
		msg := vote.MsgVote()
		aged := height-msg.BlockHeight > limit
		future := msg.BlockHeight > height+voteFutureWindow
		if !aged && !future {
			continue
		}

		log.Debugf("CleanPaymentList: removing old masternode payment "+
			"vote for block %d", msg.BlockHeight)
		hash := hash
		if p.cfg.Sync != nil {
			p.cfg.Sync.EvictWinner(&hash)
		}
		delete(p.votes, hash)
		delete(p.lastVotes, voteKey(msg.VoterVin.PreviousOutPoint,
			msg.BlockHeight, msg.PayeeLevel))
		delete(p.blocks, msg.BlockHeight)
	}
}

// String returns a one line summary of the store.
func (p *Payments) String() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return fmt.Sprintf("Votes: %d, Blocks: %d", len(p.votes),
		len(p.blocks))
}

// OldestBlock returns the lowest height with a known tally.
func (p *Payments) OldestBlock() int32 {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	oldest := int32(math.MaxInt32)
	for height := range p.blocks {
		if height < oldest {
			oldest = height
		}
	}
	return oldest
}

// NewestBlock returns the highest height with a known tally.
func (p *Payments) NewestBlock() int32 {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	newest := int32(0)
	for height := range p.blocks {
		if height > newest {
			newest = height
		}
	}
	return newest
}

// payeeAddr renders a payee script as an address when its form is
// recognized, falling back to hex.
func (p *Payments) payeeAddr(script []byte) string {
	params := p.cfg.ChainParams
	if params == nil {
		return hex.EncodeToString(script)
	}

	// Pay-to-pubkey-hash.
	if len(script) == 25 && script[0] == 0x76 && script[1] == 0xa9 &&
		script[2] == 0x14 && script[23] == 0x88 && script[24] == 0xac {

		return base58.CheckEncode(script[3:23], params.PubKeyHashAddrID)
	}

	// Pay-to-pubkey.
	if len(script) >= 2 && script[len(script)-1] == 0xac {
		dataLen := int(script[0])
		if dataLen == 33 || dataLen == 65 {
			if len(script) == dataLen+2 {
				pkHash := btcutil.Hash160(script[1 : 1+dataLen])
				return base58.CheckEncode(pkHash,
					params.PubKeyHashAddrID)
			}
		}
	}

	return hex.EncodeToString(script)
}
