// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/stakemesh/voterewards/chain"
	"github.com/stakemesh/voterewards/delegateindex"
	"github.com/stakemesh/voterewards/pkg/lifecycle"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Fetch new delegation events and advance the log watermark",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		cli, err := chain.Dial(ctx, cfg.Chain.Endpoint)
		if err != nil {
			return err
		}
		defer cli.Close()

		source := chain.NewRegistrySource(cli, common.HexToAddress(cfg.Chain.Registry), cfg.Chain.Space, cfg.Chain.TimestampWorkers)
		idxCfg := cfg.Indexer
		if idxCfg.StartBlock == 0 {
			idxCfg.StartBlock = cfg.Chain.RegistryDeployBlock
		}
		indexer := delegateindex.NewIndexer(source, newEventLog(cfg), idxCfg)

		var lc lifecycle.Lifecycle
		lc.Add(indexer)
		if err := lc.OnStart(ctx); err != nil {
			return err
		}
		defer func() { _ = lc.OnStop(ctx) }()
		return indexer.Index(ctx)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
