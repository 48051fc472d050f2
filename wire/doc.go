// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the Simplicity p2p protocol primitives used by the
masternode payment subsystem.

The package provides the low level plumbing for serializing and
deserializing protocol messages to and from the wire: little endian element
readers and writers, variable length integers, strings, and byte slices, a
minimal transaction model (OutPoint, TxIn, TxOut, MsgTx, MsgBlock), the
inventory vector type, and the two masternode payment messages:

	mnw  (MsgMNWinner)        a signed payee nomination for one block height
	ssc  (MsgSyncStatusCount) the end-of-sync-chunk marker

Messages implement the Message interface which abstracts the details of the
encoding so that callers only deal with typed Go structures.  All encoding
is protocol version aware even though the current messages encode
identically at every supported version.
*/
package wire
