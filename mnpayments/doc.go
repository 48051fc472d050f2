// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mnpayments implements the masternode payment consensus subsystem.

Every block height elects, per masternode service level, the masternode that
is entitled to a share of the block reward.  The top ten masternodes of each
level (ranked 100 blocks back to stay stable across short reorgs) broadcast
signed winner votes, peers tally them, and a payee with six or more votes
becomes enforceable: blocks that fail to pay it are rejected while the
payment enforcement spork is active.

The package provides:

  - the vote and tally tables with admission, deduplication, and pruning
    to the retention horizon (Payments)
  - block validation entry points (IsBlockValueValid, IsBlockPayeeValid)
  - reward output construction for locally produced blocks (FillBlockPayee)
  - the gossip handler and initial-sync push for the mnw message
  - vote production for nodes that are themselves masternode operators
  - the mnpayments.dat flat file snapshot (PaymentsStore)

External collaborators (the chain, the masternode registry, the budget
subsystem, the spork oracle, and the reward schedule) are consumed through
the interfaces declared in this package so that they can be stubbed in
tests.
*/
package mnpayments
