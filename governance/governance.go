// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package governance defines the proposal and vote records the engine
// consumes, validated once at the ingestion boundary.
package governance

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidProposal indicates a malformed proposal record
	ErrInvalidProposal = errors.New("invalid proposal")
	// ErrInvalidVote indicates a malformed vote record
	ErrInvalidVote = errors.New("invalid vote")
	// ErrInvalidChoiceMap indicates a gauge choice map inconsistent with the proposal
	ErrInvalidChoiceMap = errors.New("invalid gauge choice map")
)

type (
	// Proposal is a closed governance proposal. Immutable once created.
	Proposal struct {
		ID            string
		Space         string
		Choices       []string
		SnapshotBlock uint64
		Start         int64
		End           int64
	}

	// Vote is one voter's weight split across the proposal's choices.
	// Choices maps 1-indexed choice ids to raw weights; the weight base is
	// whatever the voter's UI used and is never interpreted globally.
	Vote struct {
		Voter       common.Address
		Choices     map[int]uint64
		VotingPower float64
	}

	// GaugeChoiceMap maps a gauge address to its 1-indexed choice id within
	// the proposal's choices array. Built once per proposal, read-only after.
	GaugeChoiceMap map[common.Address]int
)

// Validate checks the proposal at the ingestion boundary.
func (p *Proposal) Validate() error {
	if p.ID == "" {
		return errors.Wrap(ErrInvalidProposal, "empty id")
	}
	if len(p.Choices) == 0 {
		return errors.Wrapf(ErrInvalidProposal, "proposal %s has no choices", p.ID)
	}
	if p.SnapshotBlock == 0 {
		return errors.Wrapf(ErrInvalidProposal, "proposal %s has no snapshot block", p.ID)
	}
	return nil
}

// Validate checks the vote at the ingestion boundary. Votes with zero total
// weight are accepted; they simply contribute no effective voting power.
func (v *Vote) Validate(p *Proposal) error {
	if v.Voter == (common.Address{}) {
		return errors.Wrap(ErrInvalidVote, "zero voter address")
	}
	for choiceID := range v.Choices {
		if choiceID < 1 || choiceID > len(p.Choices) {
			return errors.Wrapf(ErrInvalidVote, "voter %s references choice %d out of range [1, %d]",
				v.Voter.Hex(), choiceID, len(p.Choices))
		}
	}
	if v.VotingPower < 0 {
		return errors.Wrapf(ErrInvalidVote, "voter %s has negative voting power", v.Voter.Hex())
	}
	return nil
}

// ChoiceID returns the 1-indexed choice id a gauge maps to.
func (m GaugeChoiceMap) ChoiceID(gauge common.Address) (int, bool) {
	id, ok := m[gauge]
	return id, ok
}

// Validate checks every mapped choice id against the proposal.
func (m GaugeChoiceMap) Validate(p *Proposal) error {
	for gauge, choiceID := range m {
		if choiceID < 1 || choiceID > len(p.Choices) {
			return errors.Wrapf(ErrInvalidChoiceMap, "gauge %s maps to choice %d out of range [1, %d]",
				gauge.Hex(), choiceID, len(p.Choices))
		}
	}
	return nil
}
