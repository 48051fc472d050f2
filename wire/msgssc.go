// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// Masternode sync item identifiers carried in the ssc message.
const (
	// SyncItemList is the item id for the masternode list.
	SyncItemList int32 = 2

	// SyncItemMNWinner is the item id for masternode payment votes.
	SyncItemMNWinner int32 = 4

	// SyncItemBudget is the item id for budget items.
	SyncItemBudget int32 = 6
)

// MsgSyncStatusCount implements the Message interface and represents a
// simplicity ssc message.  It is sent at the end of a sync chunk to tell
// the requesting peer how many items of the given kind were pushed.
type MsgSyncStatusCount struct {
	ItemID int32
	Count  int32
}

// BtcDecode decodes r using the simplicity protocol encoding into the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgSyncStatusCount) BtcDecode(r io.Reader, pver uint32) error {
	return readElements(r, &msg.ItemID, &msg.Count)
}

// BtcEncode encodes the receiver to w using the simplicity protocol
// encoding.  This is part of the Message interface implementation.
func (msg *MsgSyncStatusCount) BtcEncode(w io.Writer, pver uint32) error {
	return writeElements(w, msg.ItemID, msg.Count)
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgSyncStatusCount) Command() string {
	return CmdSyncStatusCount
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgSyncStatusCount) MaxPayloadLength(pver uint32) uint32 {
	// Item id 4 bytes + count 4 bytes.
	return 8
}

// NewMsgSyncStatusCount returns a new simplicity ssc message that conforms
// to the Message interface.  See MsgSyncStatusCount for details.
func NewMsgSyncStatusCount(itemID int32, count int32) *MsgSyncStatusCount {
	return &MsgSyncStatusCount{
		ItemID: itemID,
		Count:  count,
	}
}
