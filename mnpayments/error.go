// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnpayments

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of vote admission failure.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrNotSynced indicates the local node has not finished syncing the
	// block chain and cannot evaluate votes yet.  The vote is dropped
	// silently; the peer will resend during sync.
	ErrNotSynced ErrorCode = iota

	// ErrNotReady indicates the chain tip could not be snapshotted
	// without blocking.  The operation should be retried.
	ErrNotReady

	// ErrUnknownVoter indicates the voting masternode is not present in
	// the registry.  A registry refresh is requested when this occurs.
	ErrUnknownVoter

	// ErrUnknownPayee indicates the nominated masternode is not present
	// in the registry.
	ErrUnknownPayee

	// ErrStaleWindow indicates the vote height falls outside the
	// retention horizon around the current tip.
	ErrStaleWindow

	// ErrDuplicateVote indicates a vote with the same content hash is
	// already stored.
	ErrDuplicateVote

	// ErrAlreadyVoted indicates the voter already cast a vote for this
	// height and masternode level.
	ErrAlreadyVoted

	// ErrBadRank indicates the voter is not ranked in the top
	// SignaturesTotal masternodes of its level at the reference height.
	ErrBadRank

	// ErrBadSignature indicates the vote signature did not verify
	// against the voter's masternode key.
	ErrBadSignature

	// ErrProtocolTooOld indicates the voter's declared protocol version
	// is below the current minimum.
	ErrProtocolTooOld

	// ErrUnknownBlock indicates the reference block 100 blocks below the
	// vote height is not known to the chain yet.
	ErrUnknownBlock
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrNotSynced:      "ErrNotSynced",
	ErrNotReady:       "ErrNotReady",
	ErrUnknownVoter:   "ErrUnknownVoter",
	ErrUnknownPayee:   "ErrUnknownPayee",
	ErrStaleWindow:    "ErrStaleWindow",
	ErrDuplicateVote:  "ErrDuplicateVote",
	ErrAlreadyVoted:   "ErrAlreadyVoted",
	ErrBadRank:        "ErrBadRank",
	ErrBadSignature:   "ErrBadSignature",
	ErrProtocolTooOld: "ErrProtocolTooOld",
	ErrUnknownBlock:   "ErrUnknownBlock",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// SuggestedScore returns the misbehavior score increment the transport is
// suggested to apply for the offense.  The subsystem itself only assesses
// the signature and far-out-of-rank offenses directly; the rest are
// advisory so that the transport can ban peers that repeat them.
func (e ErrorCode) SuggestedScore() int {
	switch e {
	case ErrUnknownVoter, ErrUnknownPayee:
		return 2
	case ErrStaleWindow, ErrAlreadyVoted:
		return 1
	case ErrBadSignature:
		return 20
	}
	return 0
}

// RuleError identifies a rule violation during vote admission.  It is used
// to indicate that processing of a vote failed due to one of the many
// validation rules.  The caller can use type assertions to determine if a
// failure was specifically due to a rule violation and use the ErrorCode
// field to identify the specific violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err is a RuleError with the provided error
// code.
func IsErrorCode(err error, c ErrorCode) bool {
	var rerr RuleError
	return errors.As(err, &rerr) && rerr.ErrorCode == c
}
