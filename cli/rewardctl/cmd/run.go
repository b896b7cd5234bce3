// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/stakemesh/voterewards/chain"
	"github.com/stakemesh/voterewards/config"
	"github.com/stakemesh/voterewards/delegateindex"
	"github.com/stakemesh/voterewards/delegation"
	"github.com/stakemesh/voterewards/engine"
	"github.com/stakemesh/voterewards/snapshot"
)

var (
	_proposalID string
	_gaugesPath string
	_linesPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full period pipeline: distribute, split, merge and build the merkle claim file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		params, err := buildParams(ctx, cfg)
		if err != nil {
			return err
		}

		cli, err := chain.Dial(ctx, cfg.Chain.Endpoint)
		if err != nil {
			return err
		}
		defer cli.Close()

		params.Delegators, err = reconstructDelegators(ctx, cfg, common.HexToAddress(cfg.Rewards.Delegate), params.Proposal.SnapshotBlock)
		if err != nil {
			return err
		}

		res, err := newEngine(cfg, cli).Run(ctx, params)
		if err != nil {
			return err
		}
		for _, warning := range res.Warnings {
			fmt.Printf("warning: %s: %s\n", warning.Gauge.Hex(), warning.Message)
		}
		fmt.Printf("merkle root: %s\n", res.Claims.MerkleRoot.Hex())
		fmt.Printf("recipients: %d\n", len(res.Distribution))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&_proposalID, "proposal", "", "governance proposal id")
	runCmd.Flags().StringVar(&_gaugesPath, "gauges", "", "gauge to choice id map file")
	runCmd.Flags().StringVar(&_linesPath, "lines", "", "reward lines file")
	_ = runCmd.MarkFlagRequired("proposal")
	_ = runCmd.MarkFlagRequired("gauges")
	_ = runCmd.MarkFlagRequired("lines")
	rootCmd.AddCommand(runCmd)
}

// buildParams fetches the proposal and its votes from the hub and loads the
// local inputs.
func buildParams(ctx context.Context, cfg config.Config) (engine.Params, error) {
	hub := snapshot.NewClient(cfg.Hub)
	proposal, err := hub.FetchProposal(ctx, _proposalID)
	if err != nil {
		return engine.Params{}, err
	}
	votes, err := hub.FetchVotes(ctx, proposal)
	if err != nil {
		return engine.Params{}, err
	}
	choices, err := loadGaugeMap(_gaugesPath)
	if err != nil {
		return engine.Params{}, err
	}
	lines, err := loadRewardLines(_linesPath)
	if err != nil {
		return engine.Params{}, err
	}
	return engine.Params{
		Proposal: proposal,
		Votes:    votes,
		Choices:  choices,
		Lines:    lines,
	}, nil
}

// reconstructDelegators replays the event log to the delegator set at the
// snapshot block. The log must have been indexed past that block.
func reconstructDelegators(ctx context.Context, cfg config.Config, delegate common.Address, snapshotBlock uint64) ([]common.Address, error) {
	eLog := newEventLog(cfg)
	if err := eLog.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = eLog.Stop(ctx) }()
	events, err := eLog.Events()
	if err != nil {
		return nil, err
	}
	return delegateindex.Replay(events, delegate, snapshotBlock), nil
}

// newEngine wires the pipeline engine with the on-chain collaborators.
func newEngine(cfg config.Config, cli *chain.Client) *engine.Engine {
	oracle := chain.NewPowerOracle(cli, common.HexToAddress(cfg.Chain.PowerToken))
	opts := []engine.Option{
		engine.WithWorkers(cfg.Rewards.GaugeWorkers),
		engine.WithSplitOptions(delegation.WithVPBatchSize(cfg.Rewards.VPBatchSize)),
	}
	if cfg.Chain.ForwarderRegistry != "" {
		registry := chain.NewForwarderReader(cli, common.HexToAddress(cfg.Chain.ForwarderRegistry))
		opts = append(opts, engine.WithSplitOptions(delegation.WithForwarderRegistry(registry)))
	}
	if cfg.Rewards.FixedPointDust {
		opts = append(opts, engine.WithDustPolicy(delegation.DustPolicyFixedPoint))
	}
	dir := filepath.Join(cfg.Rewards.ArtifactDir, _proposalID)
	return engine.NewEngine(dir, common.HexToAddress(cfg.Rewards.Delegate), oracle, opts...)
}
