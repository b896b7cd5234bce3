// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const _testYAML = `
chain:
  endpoint: https://eth.example.org
  registry: "0x469788fE6E9E9681C6ebF3bF78e7Fd26Fc015446"
  registryDeployBlock: 11225329
  space: cvx.eth
rewards:
  delegate: "0x989AEb4d175e16225E39E87d0D97A3360524AD80"
indexer:
  batchSize: 5000
`

func TestNewDefault(t *testing.T) {
	r := require.New(t)

	// defaults alone fail validation: the endpoint and delegate must be set
	_, err := New(nil)
	r.True(errors.Is(err, ErrInvalidCfg))

	cfg, err := New(nil, func(Config) error { return nil })
	r.NoError(err)
	r.Equal(Default.Indexer.BatchSize, cfg.Indexer.BatchSize)
	r.Equal("file", cfg.EventLog.Backend)
	r.Equal("artifacts", cfg.Rewards.ArtifactDir)
}

func TestNewFromFile(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	r.NoError(os.WriteFile(path, []byte(_testYAML), 0600))

	cfg, err := New([]string{path})
	r.NoError(err)
	r.Equal("https://eth.example.org", cfg.Chain.Endpoint)
	r.Equal("cvx.eth", cfg.Chain.Space)
	r.Equal(uint64(11225329), cfg.Chain.RegistryDeployBlock)
	// file overrides win over defaults, untouched fields keep defaults
	r.Equal(uint64(5000), cfg.Indexer.BatchSize)
	r.Equal(Default.Indexer.MaxRetries, cfg.Indexer.MaxRetries)
}

func TestValidation(t *testing.T) {
	r := require.New(t)

	cfg := Default
	cfg.Chain.Endpoint = "https://eth.example.org"
	cfg.Chain.Space = "cvx.eth"
	cfg.Rewards.Delegate = "0x989AEb4d175e16225E39E87d0D97A3360524AD80"
	r.NoError(ValidateChain(cfg))
	r.NoError(ValidateRewards(cfg))
	r.NoError(ValidateEventLog(cfg))

	bad := cfg
	bad.Chain.Registry = "not-an-address"
	r.True(errors.Is(ValidateChain(bad), ErrInvalidCfg))

	bad = cfg
	bad.Rewards.Delegate = ""
	r.True(errors.Is(ValidateRewards(bad), ErrInvalidCfg))

	bad = cfg
	bad.EventLog.Backend = "clickhouse"
	r.True(errors.Is(ValidateEventLog(bad), ErrInvalidCfg))
}
