// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package governance

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEffectiveVotingPower(t *testing.T) {
	r := require.New(t)

	for _, tt := range []struct {
		name     string
		vote     Vote
		choiceID int
		expected float64
	}{
		{
			"full weight to one choice",
			Vote{VotingPower: 100, Choices: map[int]uint64{1: 100}},
			1,
			100,
		},
		{
			"even split",
			Vote{VotingPower: 50, Choices: map[int]uint64{1: 50, 2: 50}},
			1,
			25,
		},
		{
			"million fixed-point base normalizes the same",
			Vote{VotingPower: 50, Choices: map[int]uint64{1: 500000, 2: 500000}},
			1,
			25,
		},
		{
			"choice not voted",
			Vote{VotingPower: 100, Choices: map[int]uint64{2: 100}},
			1,
			0,
		},
		{
			"zero weight on choice",
			Vote{VotingPower: 100, Choices: map[int]uint64{1: 0, 2: 100}},
			1,
			0,
		},
		{
			"all-zero weights never divide by zero",
			Vote{VotingPower: 100, Choices: map[int]uint64{1: 0, 2: 0}},
			1,
			0,
		},
		{
			"empty choice map",
			Vote{VotingPower: 100, Choices: map[int]uint64{}},
			1,
			0,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, EffectiveVotingPower(&tt.vote, tt.choiceID))
		})
	}

	// uneven three-way split
	v := Vote{VotingPower: 90, Choices: map[int]uint64{1: 10, 2: 20, 3: 70}}
	r.InDelta(9, EffectiveVotingPower(&v, 1), 1e-9)
	r.InDelta(18, EffectiveVotingPower(&v, 2), 1e-9)
	r.InDelta(63, EffectiveVotingPower(&v, 3), 1e-9)
}

func TestProposalValidate(t *testing.T) {
	r := require.New(t)

	p := Proposal{ID: "0xabc", Space: "gauges.eth", Choices: []string{"a", "b"}, SnapshotBlock: 100}
	r.NoError(p.Validate())

	bad := p
	bad.ID = ""
	r.Error(bad.Validate())

	bad = p
	bad.Choices = nil
	r.Error(bad.Validate())

	bad = p
	bad.SnapshotBlock = 0
	r.Error(bad.Validate())
}

func TestVoteValidate(t *testing.T) {
	r := require.New(t)

	p := Proposal{ID: "0xabc", Choices: []string{"a", "b"}, SnapshotBlock: 100}
	v := Vote{
		Voter:       common.HexToAddress("0x1"),
		Choices:     map[int]uint64{1: 60, 2: 40},
		VotingPower: 10,
	}
	r.NoError(v.Validate(&p))

	bad := v
	bad.Voter = common.Address{}
	r.Error(bad.Validate(&p))

	bad = v
	bad.Choices = map[int]uint64{3: 100}
	r.Error(bad.Validate(&p))

	bad = v
	bad.Choices = map[int]uint64{0: 100}
	r.Error(bad.Validate(&p))
}

func TestGaugeChoiceMapValidate(t *testing.T) {
	r := require.New(t)

	p := Proposal{ID: "0xabc", Choices: []string{"a", "b"}, SnapshotBlock: 100}
	m := GaugeChoiceMap{
		common.HexToAddress("0x11"): 1,
		common.HexToAddress("0x22"): 2,
	}
	r.NoError(m.Validate(&p))

	id, ok := m.ChoiceID(common.HexToAddress("0x11"))
	r.True(ok)
	r.Equal(1, id)
	_, ok = m.ChoiceID(common.HexToAddress("0x33"))
	r.False(ok)

	m[common.HexToAddress("0x33")] = 3
	r.Error(m.Validate(&p))
}
