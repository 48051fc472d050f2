// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MessageHeaderSize is the number of bytes in a simplicity message header.
// It consists of 4 bytes of network magic, a 12 byte command, 4 bytes of
// payload length, and 4 bytes of checksum.
const MessageHeaderSize = 24

// CommandSize is the fixed size of all commands in the common simplicity
// message header.  Shorter commands must be zero padded.
const CommandSize = 12

// MaxMessagePayload is the maximum bytes a message can be regardless of
// other individual limits imposed by messages themselves.
const MaxMessagePayload = (1024 * 1024 * 32) // 32MB

// Commands used in simplicity message headers which describe the type of
// message.
const (
	CmdTx              = "tx"
	CmdBlock           = "block"
	CmdInv             = "inv"
	CmdMNWinner        = "mnw"
	CmdSyncStatusCount = "ssc"
)

// Message is an interface that describes a simplicity message.  A type that
// implements Message has complete control over the representation of its
// data and may therefore contain additional or fewer fields than those which
// are used directly in the protocol encoded message.
type Message interface {
	BtcDecode(io.Reader, uint32) error
	BtcEncode(io.Writer, uint32) error
	Command() string
	MaxPayloadLength(uint32) uint32
}

// makeEmptyMessage creates a message of the appropriate concrete type based
// on the command.
func makeEmptyMessage(command string) (Message, error) {
	var msg Message
	switch command {
	case CmdTx:
		msg = &MsgTx{}

	case CmdBlock:
		msg = &MsgBlock{}

	case CmdInv:
		msg = &MsgInv{}

	case CmdMNWinner:
		msg = &MsgMNWinner{}

	case CmdSyncStatusCount:
		msg = &MsgSyncStatusCount{}

	default:
		return nil, messageError("makeEmptyMessage",
			fmt.Sprintf("unhandled command [%s]", command))
	}
	return msg, nil
}
