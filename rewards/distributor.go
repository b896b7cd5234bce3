// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package rewards

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/stakemesh/voterewards/governance"
)

// ErrGaugeNotMapped indicates a reward line targets a gauge absent from the
// gauge choice map. The reward cannot be attributed to any choice, so the
// period's computation must abort rather than silently skip funds.
var ErrGaugeNotMapped = errors.New("gauge not mapped to any proposal choice")

// _weightScale converts float effective voting power to integer weights so
// that per-voter allocations are computed with exact integer division.
var _weightScale = big.NewFloat(1e18)

const _defaultWorkers = 4

type (
	// Warning is a nonfatal reconciliation finding surfaced to the caller.
	Warning struct {
		Gauge   common.Address
		Message string
	}

	// Distributor splits each gauge's summed reward lines across the voters
	// who voted nonzero for that gauge's choice.
	Distributor struct {
		choices governance.GaugeChoiceMap
		votes   []*governance.Vote
		workers int
	}

	// Option sets an option on the distributor.
	Option func(*Distributor)

	voterWeight struct {
		voter  common.Address
		weight *big.Int
	}
)

// WithWorkers sets the number of parallel gauge workers.
func WithWorkers(n int) Option {
	return func(d *Distributor) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDistributor creates a distributor for one proposal's votes. The vote
// slice order fixes the "last voter" of the exact-sum rule, so callers must
// pass votes in a stable order.
func NewDistributor(choices governance.GaugeChoiceMap, votes []*governance.Vote, opts ...Option) *Distributor {
	d := &Distributor{
		choices: choices,
		votes:   votes,
		workers: _defaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute allocates every reward line to voters. The returned distribution
// sums exactly to the per-(gauge, token) reward totals. Gauges whose voters
// have zero total effective voting power produce a Warning and no allocation.
// A gauge missing from the choice map is fatal.
func (d *Distributor) Distribute(ctx context.Context, lines []RewardLine) (Distribution, []Warning, error) {
	byGauge := SumRewardLines(lines)

	gauges := make([]common.Address, 0, len(byGauge))
	for gauge := range byGauge {
		gauges = append(gauges, gauge)
	}
	sort.Slice(gauges, func(i, j int) bool { return gauges[i].Hex() < gauges[j].Hex() })

	// attribution failures abort before any work is spent
	choiceIDs := make(map[common.Address]int, len(gauges))
	for _, gauge := range gauges {
		choiceID, ok := d.choices.ChoiceID(gauge)
		if !ok {
			return nil, nil, errors.Wrapf(ErrGaugeNotMapped, "gauge %s", gauge.Hex())
		}
		choiceIDs[gauge] = choiceID
	}

	type gaugeResult struct {
		dist    Distribution
		warning *Warning
	}
	results := make([]gaugeResult, len(gauges))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, gauge := range gauges {
		i, gauge := i, gauge
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			dist, warning := d.distributeGauge(gauge, choiceIDs[gauge], byGauge[gauge])
			results[i] = gaugeResult{dist: dist, warning: warning}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	merged := make(Distribution)
	var warnings []Warning
	for _, res := range results {
		merged.Merge(res.dist)
		if res.warning != nil {
			warnings = append(warnings, *res.warning)
		}
	}
	return merged, warnings, nil
}

// distributeGauge allocates one gauge's token totals across its voters with
// the last voter absorbing the truncation remainder.
func (d *Distributor) distributeGauge(gauge common.Address, choiceID int, tokens map[common.Address]*big.Int) (Distribution, *Warning) {
	voters, totalWeight := d.voterWeights(choiceID)
	dist := make(Distribution)
	if len(voters) == 0 || totalWeight.Sign() == 0 {
		return dist, &Warning{
			Gauge:   gauge,
			Message: "gauge has reward lines but zero total effective voting power; rewards not distributed",
		}
	}

	for _, token := range SortedTokens(tokens) {
		total := tokens[token]
		allocated := new(big.Int)
		for i, vw := range voters {
			var amount *big.Int
			if i == len(voters)-1 {
				amount = new(big.Int).Sub(total, allocated)
			} else {
				amount = new(big.Int).Mul(total, vw.weight)
				amount.Div(amount, totalWeight)
				allocated.Add(allocated, amount)
			}
			dist.Add(vw.voter, token, amount)
		}
	}
	return dist, nil
}

// voterWeights returns the voters with nonzero effective voting power for the
// choice, in vote-list order, with their scaled integer weights.
func (d *Distributor) voterWeights(choiceID int) ([]voterWeight, *big.Int) {
	var (
		voters      []voterWeight
		totalWeight = new(big.Int)
	)
	for _, vote := range d.votes {
		eff := governance.EffectiveVotingPower(vote, choiceID)
		if eff <= 0 {
			continue
		}
		weight, _ := new(big.Float).SetPrec(128).Mul(big.NewFloat(eff), _weightScale).Int(nil)
		if weight.Sign() == 0 {
			continue
		}
		voters = append(voters, voterWeight{voter: vote.Voter, weight: weight})
		totalWeight.Add(totalWeight, weight)
	}
	return voters, totalWeight
}
