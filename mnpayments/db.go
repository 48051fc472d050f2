// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/simplicity-project/spld/wire"
)

const (
	// DBFilename is the name of the flat file the election store is
	// snapshotted to inside the data directory.
	DBFilename = "mnpayments.dat"

	// dbMagicMessage is the cache file specific magic message.  It keys
	// the file to this subsystem so that unrelated cache files are
	// rejected early.
	dbMagicMessage = "MasternodePayments"
)

// ReadResult is the outcome of reading a payments snapshot file.  The
// distinct kinds guide recovery: a missing or malformed-after-header file
// is recreated, while a checksum or network mismatch is surfaced to the
// operator.
type ReadResult int

// Possible outcomes of PaymentsStore.Read.
const (
	ReadOK ReadResult = iota
	ReadFileError
	ReadHashError
	ReadHashMismatch
	ReadBadMagicMessage
	ReadBadNetwork
	ReadBadFormat
)

// Map of ReadResult values back to their constant names for pretty
// printing.
var readResultStrings = map[ReadResult]string{
	ReadOK:              "Ok",
	ReadFileError:       "FileError",
	ReadHashError:       "HashReadError",
	ReadHashMismatch:    "IncorrectHash",
	ReadBadMagicMessage: "IncorrectMagicMessage",
	ReadBadNetwork:      "IncorrectMagicNumber",
	ReadBadFormat:       "IncorrectFormat",
}

// String returns the ReadResult as a human-readable name.
func (r ReadResult) String() string {
	if s, ok := readResultStrings[r]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ReadResult (%d)", int(r))
}

// PaymentsStore reads and writes the election store snapshot file.  The
// on-disk format is the length-prefixed magic message, the four byte
// network magic, the serialized election tables, and a trailing double
// sha256 checksum over everything before it.
type PaymentsStore struct {
	path string
	net  wire.CurrencyNet
}

// NewPaymentsStore returns a store bound to the provided file path and
// network.
func NewPaymentsStore(path string, net wire.CurrencyNet) *PaymentsStore {
	return &PaymentsStore{path: path, net: net}
}

// Path returns the snapshot file path.
func (s *PaymentsStore) Path() string {
	return s.path
}

// Write serializes the election store, checksums the data up to that
// point, appends the checksum, and commits the result to disk.
func (s *PaymentsStore) Write(p *Payments) error {
	start := time.Now()

	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, 0, dbMagicMessage); err != nil {
		return err
	}
	if err := writeNetMagic(&buf, s.net); err != nil {
		return err
	}
	if err := p.serialize(&buf); err != nil {
		return err
	}

	hash := chainhash.DoubleHashH(buf.Bytes())
	buf.Write(hash[:])

	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	log.Debugf("Written info to mnpayments.dat  %dms",
		time.Since(start).Milliseconds())
	return nil
}

// Read loads the snapshot file into the provided election store, replacing
// its contents wholesale.  Unless dryRun is set, a successful load is
// immediately followed by a prune so entries outside the horizon do not
// survive a restart.
func (s *PaymentsStore) Read(p *Payments, dryRun bool) ReadResult {
	start := time.Now()

	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Debugf("Failed to open file %s: %v", s.path, err)
		return ReadFileError
	}

	// The file carries a 32 byte checksum tail over everything before it.
	if len(data) < chainhash.HashSize {
		log.Debugf("File %s too short for checksum", s.path)
		return ReadHashError
	}
	payload := data[:len(data)-chainhash.HashSize]
	var expected chainhash.Hash
	copy(expected[:], data[len(data)-chainhash.HashSize:])

	if got := chainhash.DoubleHashH(payload); got != expected {
		log.Debugf("Checksum mismatch, data corrupted")
		return ReadHashMismatch
	}

	r := bytes.NewReader(payload)

	magic, err := wire.ReadVarString(r, 0)
	if err != nil {
		return ReadBadFormat
	}
	if magic != dbMagicMessage {
		log.Debugf("Invalid masternode payment cache magic message")
		return ReadBadMagicMessage
	}

	net, err := readNetMagic(r)
	if err != nil {
		return ReadBadFormat
	}
	if net != s.net {
		log.Debugf("Invalid network magic number")
		return ReadBadNetwork
	}

	if err := p.deserialize(r); err != nil {
		log.Debugf("Deserialize error: %v", err)
		return ReadBadFormat
	}

	log.Debugf("Loaded info from mnpayments.dat  %dms",
		time.Since(start).Milliseconds())
	log.Debugf("  %s", p)

	if !dryRun {
		log.Debugf("Masternode payments manager - cleaning....")
		p.CleanPaymentList()
		log.Debugf("Masternode payments manager - result: %s", p)
	}

	return ReadOK
}

// Dump verifies the existing snapshot file format and then writes the
// current election store.  Verification failures other than a missing file
// or a malformed body abort the dump so that an operator can inspect the
// file instead of silently overwriting it.
func (s *PaymentsStore) Dump(p *Payments) error {
	start := time.Now()

	log.Debugf("Verifying mnpayments.dat format...")
	temp := New(nil)
	switch result := s.Read(temp, true); result {
	case ReadOK:

	case ReadFileError:
		log.Debugf("Missing masternode payments file - %s, will try "+
			"to recreate", s.path)

	case ReadBadFormat:
		log.Debugf("Magic is ok but data has invalid format, will " +
			"try to recreate")

	default:
		return fmt.Errorf("unrecoverable snapshot state: %v", result)
	}

	log.Debugf("Writing info to mnpayments.dat...")
	if err := s.Write(p); err != nil {
		return err
	}

	log.Debugf("Payments dump finished  %dms",
		time.Since(start).Milliseconds())
	return nil
}

// writeNetMagic writes the four byte network magic.
func writeNetMagic(w io.Writer, net wire.CurrencyNet) error {
	var b [4]byte
	b[0] = byte(net)
	b[1] = byte(net >> 8)
	b[2] = byte(net >> 16)
	b[3] = byte(net >> 24)
	_, err := w.Write(b[:])
	return err
}

// readNetMagic reads the four byte network magic.
func readNetMagic(r io.Reader) (wire.CurrencyNet, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	net := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 |
		uint32(b[3])<<24
	return wire.CurrencyNet(net), nil
}

// serialize writes the election tables in their snapshot form: the vote
// table as a length-prefixed sequence of (hash, vote) entries, the tally
// table as a length-prefixed sequence of (height, tally) entries, and the
// producer's last processed height.
func (p *Payments) serialize(w io.Writer) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := wire.WriteVarInt(w, 0, uint64(len(p.votes))); err != nil {
		return err
	}
	for hash, vote := range p.votes {
		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
		if err := vote.MsgVote().BtcEncode(w, wire.ProtocolVersion); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(p.blocks))); err != nil {
		return err
	}
	for height, tally := range p.blocks {
		if err := writeElementInt32(w, height); err != nil {
			return err
		}
		if err := serializeBlockPayees(w, tally); err != nil {
			return err
		}
	}

	return writeElementInt32(w, p.lastProcessedHeight)
}

// deserialize replaces the election tables with the snapshot read from r.
func (p *Payments) deserialize(r io.Reader) error {
	voteCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return err
	}

	votes := make(map[chainhash.Hash]*PaymentVote, voteCount)
	lastVotes := make(map[string]struct{}, voteCount)
	for i := uint64(0); i < voteCount; i++ {
		var hash chainhash.Hash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return err
		}

		var msg wire.MsgMNWinner
		if err := msg.BtcDecode(r, wire.ProtocolVersion); err != nil {
			return err
		}

		vote := NewPaymentVote(&msg)
		votes[hash] = vote
		lastVotes[voteKey(msg.VoterVin.PreviousOutPoint,
			msg.BlockHeight, msg.PayeeLevel)] = struct{}{}
	}

	blockCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return err
	}

	blocks := make(map[int32]*BlockPayees, blockCount)
	for i := uint64(0); i < blockCount; i++ {
		height, err := readElementInt32(r)
		if err != nil {
			return err
		}

		tally, err := deserializeBlockPayees(r, height)
		if err != nil {
			return err
		}
		blocks[height] = tally
	}

	lastProcessed, err := readElementInt32(r)
	if err != nil {
		return err
	}

	p.mtx.Lock()
	p.votes = votes
	p.blocks = blocks
	p.lastVotes = lastVotes
	p.lastProcessedHeight = lastProcessed
	p.mtx.Unlock()

	return nil
}

// serializeBlockPayees writes one tally.
func serializeBlockPayees(w io.Writer, tally *BlockPayees) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(tally.Payees))); err != nil {
		return err
	}
	for _, payee := range tally.Payees {
		if err := wire.WriteVarBytes(w, 0, payee.Script); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(payee.Level)); err != nil {
			return err
		}
		if err := wire.WriteTxIn(w, 0, &payee.Vin); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(payee.Votes)); err != nil {
			return err
		}
	}
	return nil
}

// deserializeBlockPayees reads one tally.
func deserializeBlockPayees(r io.Reader, height int32) (*BlockPayees, error) {
	payeeCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}

	tally := NewBlockPayees(height)
	for i := uint64(0); i < payeeCount; i++ {
		script, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload,
			"payee script")
		if err != nil {
			return nil, err
		}

		level, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}

		var vin wire.TxIn
		if err := wire.ReadTxIn(r, 0, &vin); err != nil {
			return nil, err
		}

		votes, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}

		tally.Payees = append(tally.Payees, &Payee{
			Script: script,
			Level:  uint32(level),
			Vin:    vin,
			Votes:  int(votes),
		})
	}
	return tally, nil
}

// writeElementInt32 writes a little endian int32.
func writeElementInt32(w io.Writer, v int32) error {
	var b [4]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	_, err := w.Write(b[:])
	return err
}

// readElementInt32 reads a little endian int32.
func readElementInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 |
		uint32(b[3])<<24), nil
}
