// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// maxPayeeScriptSize is the maximum allowed length for the payee script of a
// masternode winner message.
const maxPayeeScriptSize = 10000

// maxSignatureSize is the maximum allowed length for the signature of a
// masternode winner message.  Compact signatures are 65 bytes, but allow
// some slack for encodings that carry a DER signature instead.
const maxSignatureSize = 80

// MsgMNWinner implements the Message interface and represents a simplicity
// mnw message.  It declares, under the voter's masternode signature, which
// masternode should be paid at a given block height and service level.
//
// Older nodes serialize the message without the trailing PayeeLevel and
// PayeeVin fields.  Decoding tolerates that legacy short form: a stream
// that ends cleanly after the signature yields a vote for the top level
// with an empty payee input.
type MsgMNWinner struct {
	// VoterVin is the collateral input of the masternode casting the
	// vote.
	VoterVin TxIn

	// PayeeScript is the script that should receive the payment.
	PayeeScript []byte

	// BlockHeight is the height the vote elects a payee for.
	BlockHeight int32

	// Signature covers the concatenation of the voter's short outpoint
	// form, the decimal block height, and the hex encoded payee script.
	Signature []byte

	// PayeeLevel is the masternode service level the vote applies to.
	PayeeLevel uint32

	// PayeeVin is the collateral input of the nominated masternode.  It
	// is the zero value for legacy votes.
	PayeeVin TxIn
}

// BtcDecode decodes r using the simplicity protocol encoding into the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgMNWinner) BtcDecode(r io.Reader, pver uint32) error {
	err := readTxIn(r, pver, &msg.VoterVin)
	if err != nil {
		return err
	}

	msg.PayeeScript, err = ReadVarBytes(r, pver, maxPayeeScriptSize,
		"masternode winner payee script")
	if err != nil {
		return err
	}

	err = readElement(r, &msg.BlockHeight)
	if err != nil {
		return err
	}

	msg.Signature, err = ReadVarBytes(r, pver, maxSignatureSize,
		"masternode winner signature")
	if err != nil {
		return err
	}

	// Everything from here on is absent in the legacy short form, which
	// ends cleanly after the signature.
	level, err := ReadVarInt(r, pver)
	if err == io.EOF {
		msg.PayeeLevel = MaxMasternodeLevel
		msg.PayeeVin = TxIn{}
		return nil
	}
	if err != nil {
		return err
	}
	if level > uint64(MaxMasternodeLevel) {
		str := fmt.Sprintf("invalid masternode level %d [max %d]",
			level, MaxMasternodeLevel)
		return messageError("MsgMNWinner.BtcDecode", str)
	}
	msg.PayeeLevel = uint32(level)

	return readTxIn(r, pver, &msg.PayeeVin)
}

// BtcEncode encodes the receiver to w using the simplicity protocol
// encoding.  This is part of the Message interface implementation.
func (msg *MsgMNWinner) BtcEncode(w io.Writer, pver uint32) error {
	err := writeTxIn(w, pver, &msg.VoterVin)
	if err != nil {
		return err
	}

	err = WriteVarBytes(w, pver, msg.PayeeScript)
	if err != nil {
		return err
	}

	err = writeElement(w, msg.BlockHeight)
	if err != nil {
		return err
	}

	err = WriteVarBytes(w, pver, msg.Signature)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, pver, uint64(msg.PayeeLevel))
	if err != nil {
		return err
	}

	return writeTxIn(w, pver, &msg.PayeeVin)
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgMNWinner) Command() string {
	return CmdMNWinner
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgMNWinner) MaxPayloadLength(pver uint32) uint32 {
	// Two transaction inputs + payee script + block height 4 bytes +
	// signature + level varint.
	inputSize := uint32(40 + MaxVarIntPayload + maxScriptSize)
	scriptSize := uint32(MaxVarIntPayload + maxPayeeScriptSize)
	sigSize := uint32(MaxVarIntPayload + maxSignatureSize)
	return 2*inputSize + scriptSize + 4 + sigSize + MaxVarIntPayload
}

// NewMsgMNWinner returns a new simplicity mnw message that conforms to the
// Message interface.  See MsgMNWinner for details.
func NewMsgMNWinner(voterVin TxIn, blockHeight int32, payeeScript []byte,
	payeeLevel uint32, payeeVin TxIn) *MsgMNWinner {

	return &MsgMNWinner{
		VoterVin:    voterVin,
		PayeeScript: payeeScript,
		BlockHeight: blockHeight,
		PayeeLevel:  payeeLevel,
		PayeeVin:    payeeVin,
	}
}
