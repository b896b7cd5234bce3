// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package delegation re-attributes the pooled delegate's reward share down to
// its individual delegators, proportionally to voting power at the proposal's
// snapshot block.
package delegation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stakemesh/voterewards/pkg/log"
	"github.com/stakemesh/voterewards/rewards"
)

// DustPolicy selects how truncation residue is handled when splitting the
// delegate's aggregate across delegators.
type DustPolicy int

const (
	// DustPolicyExactRemainder gives the last delegator the truncation
	// remainder, so the split is dust-free. This is the default.
	DustPolicyExactRemainder DustPolicy = iota
	// DustPolicyFixedPoint allocates amount * floor(share * 1e18) / 1e18 to
	// every delegator; the residual stays with the delegate and is reported.
	DustPolicyFixedPoint
)

// _shareScale is the fixed-point base for delegator shares.
var _shareScale = big.NewInt(1e18)

const _defaultVPBatchSize = 100

type (
	// VotingPowerOracle resolves voting power for a batch of addresses at a
	// historical block. Implementations should answer one batch with one
	// upstream round-trip.
	VotingPowerOracle interface {
		VotingPowerAt(ctx context.Context, addrs []common.Address, block uint64) (map[common.Address]float64, error)
	}

	// ForwarderRegistry reports which addresses have configured on-chain
	// reward forwarding, for a batch of addresses at a historical block.
	ForwarderRegistry interface {
		IsForwarder(ctx context.Context, addrs []common.Address, block uint64) (map[common.Address]bool, error)
	}

	// DelegatorShare is one delegator's cut of the delegate's aggregate.
	// Share is a 1e18 fixed-point fraction; exactly one of ShareForwarder and
	// ShareNonForwarder equals Share when a registry is configured, and both
	// are zero otherwise.
	DelegatorShare struct {
		Address           common.Address
		Share             *big.Int
		ShareForwarder    *big.Int
		ShareNonForwarder *big.Int
	}

	// SplitResult is the outcome of re-attributing the delegate's row.
	SplitResult struct {
		Delegate       common.Address
		DelegateTokens map[common.Address]*big.Int
		Shares         []DelegatorShare
		Allocations    rewards.Distribution
		// Dust holds the per-token residual left with the delegate under the
		// fixed-point policy. Always empty under the exact-remainder policy.
		Dust map[common.Address]*big.Int
	}

	// SplitEngine splits the pooled delegate's reward row.
	SplitEngine struct {
		delegate  common.Address
		oracle    VotingPowerOracle
		registry  ForwarderRegistry
		policy    DustPolicy
		batchSize int
	}

	// Option sets an option on the split engine.
	Option func(*SplitEngine)
)

// WithDustPolicy selects the dust policy.
func WithDustPolicy(p DustPolicy) Option {
	return func(e *SplitEngine) { e.policy = p }
}

// WithForwarderRegistry enables forwarder/non-forwarder share buckets.
func WithForwarderRegistry(r ForwarderRegistry) Option {
	return func(e *SplitEngine) { e.registry = r }
}

// WithVPBatchSize sets the voting-power lookup batch size.
func WithVPBatchSize(n int) Option {
	return func(e *SplitEngine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewSplitEngine creates a split engine for the given pooled delegate.
func NewSplitEngine(delegate common.Address, oracle VotingPowerOracle, opts ...Option) *SplitEngine {
	e := &SplitEngine{
		delegate:  delegate,
		oracle:    oracle,
		batchSize: _defaultVPBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Split removes the delegate's row from dist and re-attributes it across
// delegators in proportion to their voting power at snapshotBlock. Delegators
// who also voted directly are excluded to avoid double counting. If the
// delegate has no row (it never voted, or earned nothing), Split is a no-op
// and returns nil without consulting the oracle. dist is modified in place:
// the delegate's row is removed; the caller merges result.Allocations back.
func (e *SplitEngine) Split(
	ctx context.Context,
	dist rewards.Distribution,
	delegators []common.Address,
	directVoters []common.Address,
	snapshotBlock uint64,
) (*SplitResult, error) {
	aggregate := dist.Remove(e.delegate)
	if len(aggregate) == 0 {
		return nil, nil
	}

	voted := make(map[common.Address]bool, len(directVoters))
	for _, voter := range directVoters {
		voted[voter] = true
	}
	eligible := make([]common.Address, 0, len(delegators))
	for _, delegator := range delegators {
		if voted[delegator] || delegator == e.delegate {
			continue
		}
		eligible = append(eligible, delegator)
	}

	weights, totalWeight, err := e.delegatorWeights(ctx, eligible, snapshotBlock)
	if err != nil {
		return nil, err
	}
	if totalWeight.Sign() == 0 {
		// nobody to attribute to: the delegate keeps its row
		log.L().Warn("delegate has rewards but no delegator voting power; keeping delegate row",
			zap.String("delegate", e.delegate.Hex()),
			zap.Uint64("snapshotBlock", snapshotBlock))
		for token, amount := range aggregate {
			dist.Add(e.delegate, token, amount)
		}
		return nil, nil
	}

	result := &SplitResult{
		Delegate:       e.delegate,
		DelegateTokens: aggregate,
		Allocations:    make(rewards.Distribution),
		Dust:           make(map[common.Address]*big.Int),
	}
	if err := e.computeShares(ctx, result, weights, totalWeight, snapshotBlock); err != nil {
		return nil, err
	}
	e.allocate(result, aggregate)
	return result, nil
}

type delegatorWeight struct {
	addr   common.Address
	weight *big.Int
}

// delegatorWeights resolves voting power in bounded batches and converts it
// to scaled integer weights, preserving the delegator order.
func (e *SplitEngine) delegatorWeights(ctx context.Context, delegators []common.Address, block uint64) ([]delegatorWeight, *big.Int, error) {
	var (
		weights     []delegatorWeight
		totalWeight = new(big.Int)
	)
	for start := 0; start < len(delegators); start += e.batchSize {
		end := start + e.batchSize
		if end > len(delegators) {
			end = len(delegators)
		}
		batch := delegators[start:end]
		vps, err := e.oracle.VotingPowerAt(ctx, batch, block)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to resolve voting power for %d delegators at block %d", len(batch), block)
		}
		for _, addr := range batch {
			vp := vps[addr]
			if vp <= 0 {
				continue
			}
			weight, _ := new(big.Float).SetPrec(128).Mul(big.NewFloat(vp), big.NewFloat(1e18)).Int(nil)
			if weight.Sign() == 0 {
				continue
			}
			weights = append(weights, delegatorWeight{addr: addr, weight: weight})
			totalWeight.Add(totalWeight, weight)
		}
	}
	return weights, totalWeight, nil
}

// computeShares fills result.Shares with 1e18 fixed-point fractions and, when
// a registry is configured, the forwarder/non-forwarder buckets.
func (e *SplitEngine) computeShares(ctx context.Context, result *SplitResult, weights []delegatorWeight, totalWeight *big.Int, block uint64) error {
	var forwarders map[common.Address]bool
	if e.registry != nil {
		addrs := make([]common.Address, len(weights))
		for i, w := range weights {
			addrs[i] = w.addr
		}
		forwarders = make(map[common.Address]bool, len(addrs))
		for start := 0; start < len(addrs); start += e.batchSize {
			end := start + e.batchSize
			if end > len(addrs) {
				end = len(addrs)
			}
			flags, err := e.registry.IsForwarder(ctx, addrs[start:end], block)
			if err != nil {
				return errors.Wrap(err, "failed to resolve forwarder flags")
			}
			for addr, flag := range flags {
				forwarders[addr] = flag
			}
		}
	}

	result.Shares = make([]DelegatorShare, 0, len(weights))
	for _, w := range weights {
		share := new(big.Int).Mul(w.weight, _shareScale)
		share.Div(share, totalWeight)
		ds := DelegatorShare{
			Address:           w.addr,
			Share:             share,
			ShareForwarder:    new(big.Int),
			ShareNonForwarder: new(big.Int),
		}
		if forwarders != nil {
			if forwarders[w.addr] {
				ds.ShareForwarder.Set(share)
			} else {
				ds.ShareNonForwarder.Set(share)
			}
		}
		result.Shares = append(result.Shares, ds)
	}
	return nil
}

// allocate turns shares into per-delegator token amounts under the engine's
// dust policy.
func (e *SplitEngine) allocate(result *SplitResult, aggregate map[common.Address]*big.Int) {
	result.Allocations, result.Dust = Allocate(e.delegate, result.Shares, aggregate, e.policy)
	for token, dust := range result.Dust {
		log.L().Warn("delegation split left dust with the delegate",
			zap.String("token", token.Hex()),
			zap.String("dust", dust.String()))
	}
}

// Allocate turns 1e18 fixed-point shares into per-delegator token amounts
// under the given dust policy. Under the exact-remainder policy the returned
// dust map is always empty; under the fixed-point policy the dust is also
// re-added to the delegate's own row so funds are conserved either way.
func Allocate(delegate common.Address, shares []DelegatorShare, aggregate map[common.Address]*big.Int, policy DustPolicy) (rewards.Distribution, map[common.Address]*big.Int) {
	allocations := make(rewards.Distribution)
	dusts := make(map[common.Address]*big.Int)
	for _, token := range rewards.SortedTokens(aggregate) {
		total := aggregate[token]
		allocated := new(big.Int)
		for i, ds := range shares {
			var amount *big.Int
			switch {
			case policy == DustPolicyExactRemainder && i == len(shares)-1:
				amount = new(big.Int).Sub(total, allocated)
			default:
				amount = new(big.Int).Mul(total, ds.Share)
				amount.Div(amount, _shareScale)
				allocated.Add(allocated, amount)
			}
			allocations.Add(ds.Address, token, amount)
		}
		if policy == DustPolicyFixedPoint {
			dust := new(big.Int).Sub(total, allocated)
			if dust.Sign() > 0 {
				dusts[token] = dust
				allocations.Add(delegate, token, dust)
			}
		}
	}
	return allocations, dusts
}
