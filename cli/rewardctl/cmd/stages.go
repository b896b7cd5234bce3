// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/stakemesh/voterewards/artifact"
	"github.com/stakemesh/voterewards/chain"
	"github.com/stakemesh/voterewards/config"
	"github.com/stakemesh/voterewards/delegation"
	"github.com/stakemesh/voterewards/merkle"
	"github.com/stakemesh/voterewards/pkg/util/fileutil"
	"github.com/stakemesh/voterewards/rewards"
	"github.com/stakemesh/voterewards/snapshot"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Distribute reward lines across voters and write repartition.json",
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
		if err := params.Choices.Validate(params.Proposal); err != nil {
			return err
		}
		distributor := rewards.NewDistributor(params.Choices, params.Votes, rewards.WithWorkers(cfg.Rewards.GaugeWorkers))
		dist, warnings, err := distributor.Distribute(ctx, params.Lines)
		if err != nil {
			return err
		}
		for _, warning := range warnings {
			fmt.Printf("warning: %s: %s\n", warning.Gauge.Hex(), warning.Message)
		}
		return artifact.WriteRepartition(periodPath(cfg, artifact.RepartitionFile), dist)
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split the pooled delegate's row across delegators and write repartition_delegation.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		dist, err := artifact.ReadRepartition(periodPath(cfg, artifact.RepartitionFile))
		if err != nil {
			return err
		}

		hub := snapshot.NewClient(cfg.Hub)
		proposal, err := hub.FetchProposal(ctx, _proposalID)
		if err != nil {
			return err
		}
		votes, err := hub.FetchVotes(ctx, proposal)
		if err != nil {
			return err
		}
		directVoters := make([]common.Address, 0, len(votes))
		for _, vote := range votes {
			directVoters = append(directVoters, vote.Voter)
		}

		delegate := common.HexToAddress(cfg.Rewards.Delegate)
		delegators, err := reconstructDelegators(ctx, cfg, delegate, proposal.SnapshotBlock)
		if err != nil {
			return err
		}

		cli, err := chain.Dial(ctx, cfg.Chain.Endpoint)
		if err != nil {
			return err
		}
		defer cli.Close()

		opts := []delegation.Option{delegation.WithVPBatchSize(cfg.Rewards.VPBatchSize)}
		if cfg.Chain.ForwarderRegistry != "" {
			opts = append(opts, delegation.WithForwarderRegistry(chain.NewForwarderReader(cli, common.HexToAddress(cfg.Chain.ForwarderRegistry))))
		}
		if cfg.Rewards.FixedPointDust {
			opts = append(opts, delegation.WithDustPolicy(delegation.DustPolicyFixedPoint))
		}
		splitter := delegation.NewSplitEngine(delegate, chain.NewPowerOracle(cli, common.HexToAddress(cfg.Chain.PowerToken)), opts...)
		res, err := splitter.Split(ctx, dist, delegators, directVoters, proposal.SnapshotBlock)
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Println("delegate has no reward row; nothing to split")
			return nil
		}
		return artifact.WriteDelegationSplit(periodPath(cfg, artifact.RepartitionDelegationFile), res)
	},
}

var merkleCmd = &cobra.Command{
	Use:   "merkle",
	Short: "Merge the split into the distribution and write merkle.json",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dist, err := artifact.ReadRepartition(periodPath(cfg, artifact.RepartitionFile))
		if err != nil {
			return err
		}
		delegate := common.HexToAddress(cfg.Rewards.Delegate)
		splitPath := periodPath(cfg, artifact.RepartitionDelegationFile)
		if fileutil.FileExists(splitPath) {
			stored, err := artifact.ReadDelegationSplit(splitPath)
			if err != nil {
				return err
			}
			policy := delegation.DustPolicyExactRemainder
			if cfg.Rewards.FixedPointDust {
				policy = delegation.DustPolicyFixedPoint
			}
			dist.Remove(delegate)
			allocations, _ := delegation.Allocate(delegate, stored.Shares, stored.Tokens, policy)
			dist.Merge(allocations)
		}

		claims, err := merkle.Build(dist)
		if err != nil {
			return err
		}
		if err := artifact.WriteMerkle(periodPath(cfg, artifact.MerkleFile), claims); err != nil {
			return err
		}
		fmt.Printf("merkle root: %s\n", claims.MerkleRoot.Hex())
		return nil
	},
}

func periodPath(cfg config.Config, name string) string {
	return filepath.Join(cfg.Rewards.ArtifactDir, _proposalID, name)
}

func init() {
	for _, cmd := range []*cobra.Command{distributeCmd, splitCmd, merkleCmd} {
		cmd.Flags().StringVar(&_proposalID, "proposal", "", "governance proposal id")
		_ = cmd.MarkFlagRequired("proposal")
		rootCmd.AddCommand(cmd)
	}
	distributeCmd.Flags().StringVar(&_gaugesPath, "gauges", "", "gauge to choice id map file")
	distributeCmd.Flags().StringVar(&_linesPath, "lines", "", "reward lines file")
	_ = distributeCmd.MarkFlagRequired("gauges")
	_ = distributeCmd.MarkFlagRequired("lines")
}
