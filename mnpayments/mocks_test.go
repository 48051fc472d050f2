// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/simplicity-project/spld/chaincfg"
	"github.com/simplicity-project/spld/wire"
)

// hashForHeight returns a deterministic fake block hash for a height.
func hashForHeight(height int32) chainhash.Hash {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(height))
	return chainhash.DoubleHashH(b[:])
}

// mockChain is a Chain stub backed by deterministic fake hashes.  Heights
// at or below tip plus the future window resolve; everything else does not.
type mockChain struct {
	height int32
	ready  bool
}

func (c *mockChain) Best() (int32, *chainhash.Hash, bool) {
	if !c.ready {
		return 0, nil, false
	}
	hash := hashForHeight(c.height)
	return c.height, &hash, true
}

func (c *mockChain) HeightByHash(hash *chainhash.Hash) (int32, bool) {
	for h := int32(0); h <= c.height; h++ {
		if hashForHeight(h) == *hash {
			return h, true
		}
	}
	return 0, false
}

func (c *mockChain) HashByHeight(height int32) (*chainhash.Hash, bool) {
	if height < 0 || height > c.height {
		return nil, false
	}
	hash := hashForHeight(height)
	return &hash, true
}

// mockRegistry is a Registry stub with a fixed node list and rank table.
type mockRegistry struct {
	nodes       []*Masternode
	ranks       map[wire.OutPoint]int
	count       int
	stableCount int
	nextInQueue map[uint32]*Masternode
	current     map[uint32]*Masternode

	dsegUpdates int
	askedFor    []wire.OutPoint
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		ranks:       make(map[wire.OutPoint]int),
		nextInQueue: make(map[uint32]*Masternode),
		current:     make(map[uint32]*Masternode),
	}
}

func (r *mockRegistry) Find(outpoint wire.OutPoint) *Masternode {
	for _, mn := range r.nodes {
		if mn.Vin.PreviousOutPoint == outpoint {
			return mn
		}
	}
	return nil
}

func (r *mockRegistry) FindByScript(pkScript []byte) *Masternode {
	for _, mn := range r.nodes {
		if string(mn.PayeeScript()) == string(pkScript) {
			return mn
		}
	}
	return nil
}

func (r *mockRegistry) Rank(outpoint wire.OutPoint, refHeight int32,
	minProtocol uint32) int {

	if rank, ok := r.ranks[outpoint]; ok {
		return rank
	}
	return -1
}

func (r *mockRegistry) Count() int {
	if r.count != 0 {
		return r.count
	}
	return len(r.nodes)
}

func (r *mockRegistry) StableCount() int { return r.stableCount }

func (r *mockRegistry) CountEnabled(level uint32) int {
	count := 0
	for _, mn := range r.nodes {
		if mn.Level == level {
			count++
		}
	}
	return count
}

func (r *mockRegistry) CountEnabledByLevels() map[uint32]int {
	counts := make(map[uint32]int)
	for _, mn := range r.nodes {
		counts[mn.Level]++
	}
	return counts
}

func (r *mockRegistry) NextInQueue(height int32, level uint32,
	filterRecent bool) *Masternode {

	return r.nextInQueue[level]
}

func (r *mockRegistry) Current(level uint32, minProtocol uint32) *Masternode {
	return r.current[level]
}

func (r *mockRegistry) DsegUpdate(peer Peer) {
	r.dsegUpdates++
}

func (r *mockRegistry) AskForMN(peer Peer, outpoint wire.OutPoint) {
	r.askedFor = append(r.askedFor, outpoint)
}

// mockBudget is a Budget stub.
type mockBudget struct {
	budgetBlocks map[int32]bool
	txStatus     TxValidationStatus

	fillBlockCalls    int
	fillTreasuryCalls int
}

func newMockBudget() *mockBudget {
	return &mockBudget{
		budgetBlocks: make(map[int32]bool),
		txStatus:     TxStatusVoteThreshold,
	}
}

func (b *mockBudget) IsBudgetPaymentBlock(height int32) bool {
	return b.budgetBlocks[height]
}

func (b *mockBudget) IsTransactionValid(tx *wire.MsgTx,
	height int32) TxValidationStatus {

	return b.txStatus
}

func (b *mockBudget) FillBlockPayee(tx *wire.MsgTx, fees btcutil.Amount,
	proofOfStake bool, blockValue btcutil.Amount) {

	b.fillBlockCalls++
}

func (b *mockBudget) FillTreasuryPayee(tx *wire.MsgTx, fees btcutil.Amount,
	proofOfStake bool, blockValue btcutil.Amount) {

	b.fillTreasuryCalls++
}

func (b *mockBudget) RequiredPaymentsString(height int32) string {
	return "budget"
}

// mockSporks is a Sporks stub.
type mockSporks struct {
	active map[SporkID]bool
	values map[SporkID]int64
}

func newMockSporks() *mockSporks {
	return &mockSporks{
		active: make(map[SporkID]bool),
		values: make(map[SporkID]int64),
	}
}

func (s *mockSporks) IsActive(id SporkID) bool { return s.active[id] }
func (s *mockSporks) Value(id SporkID) int64   { return s.values[id] }

// mockRewards is a RewardSchedule stub with a flat schedule: every level is
// owed payment, every height is worth blockValue.
type mockRewards struct {
	blockValue     btcutil.Amount
	payment        btcutil.Amount
	treasuryAward  btcutil.Amount
	treasuryBlocks map[int32]bool
}

func newMockRewards() *mockRewards {
	return &mockRewards{
		blockValue:     btcutil.Amount(50 * 1e8),
		payment:        btcutil.Amount(4.5 * 1e8),
		treasuryBlocks: make(map[int32]bool),
	}
}

func (r *mockRewards) BlockValue(height int32, proofOfStake bool) btcutil.Amount {
	return r.blockValue
}

func (r *mockRewards) MasternodePayment(height int32, blockValue btcutil.Amount,
	proofOfStake bool, level uint32, driftCount int,
	zerocoinStake bool) btcutil.Amount {

	return r.payment
}

func (r *mockRewards) TreasuryAward(height int32) btcutil.Amount {
	return r.treasuryAward
}

func (r *mockRewards) IsTreasuryBlock(height int32) bool {
	return r.treasuryBlocks[height]
}

// mockSync is a SyncTracker stub.
type mockSync struct {
	blockchainSynced bool
	synced           bool
	seen             map[chainhash.Hash]struct{}
}

func newMockSync() *mockSync {
	return &mockSync{
		blockchainSynced: true,
		synced:           true,
		seen:             make(map[chainhash.Hash]struct{}),
	}
}

func (s *mockSync) IsBlockchainSynced() bool { return s.blockchainSynced }
func (s *mockSync) IsSynced() bool           { return s.synced }

func (s *mockSync) AddedWinner(hash *chainhash.Hash) {
	s.seen[*hash] = struct{}{}
}

func (s *mockSync) EvictWinner(hash *chainhash.Hash) {
	delete(s.seen, *hash)
}

// mockPeer is a Peer stub that records what is pushed to it.
type mockPeer struct {
	id          int32
	protocol    uint32
	invs        []*wire.InvVect
	messages    []wire.Message
	misbehavior int
}

func newMockPeer() *mockPeer {
	return &mockPeer{id: 1, protocol: wire.ProtocolVersion}
}

func (p *mockPeer) ID() int32               { return p.id }
func (p *mockPeer) Addr() string            { return "127.0.0.1:11958" }
func (p *mockPeer) ProtocolVersion() uint32 { return p.protocol }

func (p *mockPeer) PushInventory(inv *wire.InvVect) {
	p.invs = append(p.invs, inv)
}

func (p *mockPeer) PushMessage(msg wire.Message) {
	p.messages = append(p.messages, msg)
}

func (p *mockPeer) Misbehaving(score int) {
	p.misbehavior += score
}

// mockNotifier is a PeerNotifier stub that records relayed inventory.
type mockNotifier struct {
	relayed []*wire.InvVect
}

func (n *mockNotifier) RelayInventory(inv *wire.InvVect) {
	n.relayed = append(n.relayed, inv)
}

// testHarness bundles a Payments instance with all of its stubbed
// collaborators.
type testHarness struct {
	payments *Payments
	chain    *mockChain
	registry *mockRegistry
	budget   *mockBudget
	sporks   *mockSporks
	rewards  *mockRewards
	sync     *mockSync
	notifier *mockNotifier
	params   chaincfg.Params
}

// newTestHarness returns a harness with a ready chain at the provided tip
// height and an empty registry.
func newTestHarness(t *testing.T, tipHeight int32) *testHarness {
	t.Helper()

	h := &testHarness{
		chain:    &mockChain{height: tipHeight, ready: true},
		registry: newMockRegistry(),
		budget:   newMockBudget(),
		sporks:   newMockSporks(),
		rewards:  newMockRewards(),
		sync:     newMockSync(),
		notifier: &mockNotifier{},
		params:   chaincfg.SimNetParams,
	}
	h.payments = New(&Config{
		ChainParams: &h.params,
		Chain:       h.chain,
		Registry:    h.registry,
		Budget:      h.budget,
		Sporks:      h.sporks,
		Rewards:     h.rewards,
		Sync:        h.sync,
		Notifier:    h.notifier,
	})
	return h
}

// addMasternode creates a masternode with fresh keys, registers it, and
// returns it along with its signing key.
func (h *testHarness) addMasternode(t *testing.T, level uint32,
	rank int) (*Masternode, *btcec.PrivateKey) {

	t.Helper()

	signKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	collateralKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	outpointHash := chainhash.DoubleHashH(signKey.PubKey().SerializeCompressed())
	mn := &Masternode{
		Vin: wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: outpointHash, Index: 0},
			Sequence:         wire.MaxTxInSequenceNum,
		},
		Level:           level,
		ProtocolVersion: wire.ProtocolVersion,
		CollateralKey:   collateralKey.PubKey(),
		SigningKey:      signKey.PubKey(),
	}
	h.registry.nodes = append(h.registry.nodes, mn)
	h.registry.ranks[mn.Vin.PreviousOutPoint] = rank
	return mn, signKey
}

// makeVote builds and signs a vote from the provided masternode nominating
// the provided payee script.
func makeVote(t *testing.T, voter *Masternode, signKey *btcec.PrivateKey,
	height int32, payeeScript []byte, level uint32,
	payeeVin wire.TxIn) *PaymentVote {

	t.Helper()

	vote := NewPaymentVote(wire.NewMsgMNWinner(voter.Vin, height,
		payeeScript, level, payeeVin))
	require.NoError(t, vote.Sign(signKey))
	return vote
}

// p2pkhScript returns a fake pay-to-pubkey-hash script whose hash bytes are
// derived from the seed.
func p2pkhScript(seed byte) []byte {
	script := make([]byte, 25)
	script[0] = 0x76
	script[1] = 0xa9
	script[2] = 0x14
	for i := 3; i < 23; i++ {
		script[i] = seed
	}
	script[23] = 0x88
	script[24] = 0xac
	return script
}
