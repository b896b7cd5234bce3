// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package governance

// EffectiveVotingPower returns the portion of the voter's voting power
// assigned to the given 1-indexed choice:
//
//	vp * weight[choiceID] / sum(all weights in the vote)
//
// The division is by the voter's own weight total, never a protocol-wide
// base, so votes cast with 100-based and 1e6-based weight splits normalize
// identically. A vote whose weights sum to zero contributes nothing to any
// choice.
func EffectiveVotingPower(v *Vote, choiceID int) float64 {
	weight, ok := v.Choices[choiceID]
	if !ok || weight == 0 {
		return 0
	}
	var total uint64
	for _, w := range v.Choices {
		total += w
	}
	if total == 0 {
		return 0
	}
	return v.VotingPower * float64(weight) / float64(total)
}
