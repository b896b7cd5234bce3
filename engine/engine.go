// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package engine runs the reward period pipeline: distribute reward lines
// across voters, split the pooled delegate's row across its delegators,
// merge, and build the merkle claim file. Every stage persists its artifact
// before the next starts, so a failed run resumes from the last good stage
// instead of recomputing from scratch.
package engine

import (
	"context"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stakemesh/voterewards/artifact"
	"github.com/stakemesh/voterewards/delegation"
	"github.com/stakemesh/voterewards/governance"
	"github.com/stakemesh/voterewards/merkle"
	"github.com/stakemesh/voterewards/pkg/log"
	"github.com/stakemesh/voterewards/pkg/util/fileutil"
	"github.com/stakemesh/voterewards/rewards"
)

type (
	// Params is the input of one period run.
	Params struct {
		Proposal   *governance.Proposal
		Votes      []*governance.Vote
		Choices    governance.GaugeChoiceMap
		Lines      []rewards.RewardLine
		Delegators []common.Address
	}

	// Result is the outcome of one period run.
	Result struct {
		Distribution rewards.Distribution
		Split        *delegation.SplitResult
		Claims       *merkle.MerkleClaim
		Warnings     []rewards.Warning
	}

	// Engine runs the period pipeline, writing one artifact per stage under
	// the period directory.
	Engine struct {
		dir      string
		delegate common.Address
		oracle   delegation.VotingPowerOracle
		policy   delegation.DustPolicy
		splitOps []delegation.Option
		workers  int
	}

	// Option sets an option on the engine.
	Option func(*Engine)
)

// WithSplitOptions forwards options to the delegation split engine.
func WithSplitOptions(opts ...delegation.Option) Option {
	return func(e *Engine) { e.splitOps = append(e.splitOps, opts...) }
}

// WithDustPolicy selects the delegation dust policy. The engine tracks it
// separately so a resumed run reallocates stored shares the same way the
// original run did.
func WithDustPolicy(p delegation.DustPolicy) Option {
	return func(e *Engine) {
		e.policy = p
		e.splitOps = append(e.splitOps, delegation.WithDustPolicy(p))
	}
}

// WithWorkers sets the gauge worker count of the distributor.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// NewEngine creates an engine writing artifacts under dir.
func NewEngine(dir string, delegate common.Address, oracle delegation.VotingPowerOracle, opts ...Option) *Engine {
	e := &Engine{dir: dir, delegate: delegate, oracle: oracle}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the pipeline. Stages whose artifact already exists are loaded
// instead of recomputed; warnings from recomputed stages are collected and
// returned, never fatal.
func (e *Engine) Run(ctx context.Context, params Params) (*Result, error) {
	if err := params.Choices.Validate(params.Proposal); err != nil {
		return nil, err
	}
	res := &Result{}

	dist, warnings, err := e.distribute(ctx, params)
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings

	split, err := e.split(ctx, params, dist)
	if err != nil {
		return nil, err
	}
	res.Split = split
	if split != nil {
		dist.Merge(split.Allocations)
		for token, dust := range split.Dust {
			res.Warnings = append(res.Warnings, rewards.Warning{
				Gauge:   e.delegate,
				Message: "delegation split left dust " + dust.String() + " of token " + token.Hex(),
			})
		}
	}
	res.Distribution = dist

	claims, err := e.buildClaims(dist)
	if err != nil {
		return nil, err
	}
	res.Claims = claims

	log.L().Info("period run complete",
		zap.String("proposal", params.Proposal.ID),
		zap.Int("recipients", len(dist)),
		zap.Int("warnings", len(res.Warnings)),
		zap.String("merkleRoot", claims.MerkleRoot.Hex()))
	return res, nil
}

// distribute runs or reloads the voter distribution stage.
func (e *Engine) distribute(ctx context.Context, params Params) (rewards.Distribution, []rewards.Warning, error) {
	path := filepath.Join(e.dir, artifact.RepartitionFile)
	if fileutil.FileExists(path) {
		log.L().Info("resuming from distribution artifact", zap.String("path", path))
		dist, err := artifact.ReadRepartition(path)
		return dist, nil, err
	}
	var opts []rewards.Option
	if e.workers > 0 {
		opts = append(opts, rewards.WithWorkers(e.workers))
	}
	dist, warnings, err := rewards.NewDistributor(params.Choices, params.Votes, opts...).Distribute(ctx, params.Lines)
	if err != nil {
		return nil, nil, err
	}
	if err := artifact.WriteRepartition(path, dist); err != nil {
		return nil, nil, err
	}
	return dist, warnings, nil
}

// split runs or reloads the delegation stage. dist is modified in place: the
// delegate's row is removed when a split happens.
func (e *Engine) split(ctx context.Context, params Params, dist rewards.Distribution) (*delegation.SplitResult, error) {
	path := filepath.Join(e.dir, artifact.RepartitionDelegationFile)
	if fileutil.FileExists(path) {
		log.L().Info("resuming from delegation artifact", zap.String("path", path))
		return e.reloadSplit(path, dist)
	}
	directVoters := make([]common.Address, 0, len(params.Votes))
	for _, vote := range params.Votes {
		directVoters = append(directVoters, vote.Voter)
	}
	splitter := delegation.NewSplitEngine(e.delegate, e.oracle, e.splitOps...)
	res, err := splitter.Split(ctx, dist, params.Delegators, directVoters, params.Proposal.SnapshotBlock)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	if err := artifact.WriteDelegationSplit(path, res); err != nil {
		return nil, err
	}
	return res, nil
}

// reloadSplit rebuilds a split result from the artifact, reallocating the
// stored shares under the engine's dust policy so a resumed run reproduces
// the original allocations exactly.
func (e *Engine) reloadSplit(path string, dist rewards.Distribution) (*delegation.SplitResult, error) {
	stored, err := artifact.ReadDelegationSplit(path)
	if err != nil {
		return nil, err
	}
	if stored.Delegate != (common.Address{}) && stored.Delegate != e.delegate {
		return nil, errors.Wrapf(artifact.ErrMalformedArtifact,
			"artifact delegate %s does not match configured %s", stored.Delegate.Hex(), e.delegate.Hex())
	}
	dist.Remove(e.delegate)
	allocations, dust := delegation.Allocate(e.delegate, stored.Shares, stored.Tokens, e.policy)
	return &delegation.SplitResult{
		Delegate:       e.delegate,
		DelegateTokens: stored.Tokens,
		Shares:         stored.Shares,
		Allocations:    allocations,
		Dust:           dust,
	}, nil
}

// buildClaims runs or reloads the merkle stage.
func (e *Engine) buildClaims(dist rewards.Distribution) (*merkle.MerkleClaim, error) {
	path := filepath.Join(e.dir, artifact.MerkleFile)
	if fileutil.FileExists(path) {
		log.L().Info("resuming from merkle artifact", zap.String("path", path))
		return artifact.ReadMerkle(path)
	}
	claims, err := merkle.Build(dist)
	if err != nil {
		return nil, err
	}
	if err := artifact.WriteMerkle(path, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
