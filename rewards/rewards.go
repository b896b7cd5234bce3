// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package rewards distributes per-gauge reward lines across the voters who
// backed each gauge, proportionally to effective voting power and without
// creating or losing dust.
package rewards

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// RewardLine is one reward amount claimed for a gauge, in the token's
	// smallest unit. Multiple lines may target the same (gauge, token) pair
	// and are summed before distribution.
	RewardLine struct {
		Gauge  common.Address
		Token  common.Address
		Amount *big.Int
	}

	// Distribution maps recipient -> token -> amount. Amounts are integers in
	// the token's smallest unit.
	Distribution map[common.Address]map[common.Address]*big.Int
)

// Add adds amount to the (recipient, token) cell, creating it if absent.
func (d Distribution) Add(recipient, token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	tokens, ok := d[recipient]
	if !ok {
		tokens = make(map[common.Address]*big.Int)
		d[recipient] = tokens
	}
	if cur, ok := tokens[token]; ok {
		tokens[token] = new(big.Int).Add(cur, amount)
	} else {
		tokens[token] = new(big.Int).Set(amount)
	}
}

// Merge adds every cell of other into d. Summation is commutative, so merge
// order across parallel gauge workers does not matter.
func (d Distribution) Merge(other Distribution) {
	for recipient, tokens := range other {
		for token, amount := range tokens {
			d.Add(recipient, token, amount)
		}
	}
}

// Remove removes a recipient's row and returns it (nil if absent).
func (d Distribution) Remove(recipient common.Address) map[common.Address]*big.Int {
	tokens, ok := d[recipient]
	if !ok {
		return nil
	}
	delete(d, recipient)
	return tokens
}

// TokenTotals sums amounts per token across all recipients.
func (d Distribution) TokenTotals() map[common.Address]*big.Int {
	totals := make(map[common.Address]*big.Int)
	for _, tokens := range d {
		for token, amount := range tokens {
			if cur, ok := totals[token]; ok {
				totals[token] = new(big.Int).Add(cur, amount)
			} else {
				totals[token] = new(big.Int).Set(amount)
			}
		}
	}
	return totals
}

// Recipients returns the recipient addresses in deterministic (byte) order.
func (d Distribution) Recipients() []common.Address {
	recipients := make([]common.Address, 0, len(d))
	for recipient := range d {
		recipients = append(recipients, recipient)
	}
	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].Hex() < recipients[j].Hex()
	})
	return recipients
}

// SortedTokens returns the token addresses of a row in deterministic order.
func SortedTokens(tokens map[common.Address]*big.Int) []common.Address {
	out := make([]common.Address, 0, len(tokens))
	for token := range tokens {
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}

// SumRewardLines groups reward lines by gauge and sums amounts per token.
func SumRewardLines(lines []RewardLine) map[common.Address]map[common.Address]*big.Int {
	byGauge := make(map[common.Address]map[common.Address]*big.Int)
	for _, line := range lines {
		tokens, ok := byGauge[line.Gauge]
		if !ok {
			tokens = make(map[common.Address]*big.Int)
			byGauge[line.Gauge] = tokens
		}
		if cur, ok := tokens[line.Token]; ok {
			tokens[line.Token] = new(big.Int).Add(cur, line.Amount)
		} else {
			tokens[line.Token] = new(big.Int).Set(line.Amount)
		}
	}
	return byGauge
}
