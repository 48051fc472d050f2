// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines chain configuration parameters for the three
// standard Simplicity networks and provides the ability for callers to
// define their own custom Simplicity networks.
//
// In addition to the main Simplicity network, which is intended for the
// transfer of monetary value, there also exists the following standard
// networks:
//   - testnet
//   - simnet
//
// These networks are incompatible with each other (each sharing a different
// genesis block) and software should handle errors where input intended for
// one network is used on an application instance running on a different
// network.
package chaincfg
