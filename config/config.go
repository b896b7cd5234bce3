// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	uconfig "go.uber.org/config"
	"go.uber.org/zap"

	"github.com/stakemesh/voterewards/chain"
	"github.com/stakemesh/voterewards/db"
	"github.com/stakemesh/voterewards/delegateindex"
	"github.com/stakemesh/voterewards/pkg/log"
	"github.com/stakemesh/voterewards/snapshot"
)

// IMPORTANT: to define a config, add a field or a new config type to the existing config types. In addition, provide
// the default value in Default var.

type (
	// Rewards is the reward attribution config.
	Rewards struct {
		// Delegate is the pooled delegate address whose row gets split.
		Delegate string `yaml:"delegate"`
		// ArtifactDir is the directory period artifacts are written under.
		ArtifactDir string `yaml:"artifactDir"`
		// GaugeWorkers bounds parallel per-gauge distribution.
		GaugeWorkers int `yaml:"gaugeWorkers"`
		// VPBatchSize is the voting-power lookup batch size.
		VPBatchSize int `yaml:"vpBatchSize"`
		// FixedPointDust selects the fixed-point dust policy instead of the
		// default exact-remainder policy.
		FixedPointDust bool `yaml:"fixedPointDust"`
	}

	// EventLog is the delegation event log config.
	EventLog struct {
		// Backend selects "file" or "bolt".
		Backend string `yaml:"backend"`
		// Path is the log file path (file backend) or database path (bolt
		// backend).
		Path string `yaml:"path"`
	}

	// Config is the top-level config.
	Config struct {
		Chain    chain.Config         `yaml:"chain"`
		Hub      snapshot.Config      `yaml:"hub"`
		Indexer  delegateindex.Config `yaml:"indexer"`
		EventLog EventLog             `yaml:"eventLog"`
		DB       db.Config            `yaml:"db"`
		Rewards  Rewards              `yaml:"rewards"`
		Log      log.GlobalConfig     `yaml:"log"`
	}

	// Validate is the interface of validating the config.
	Validate func(Config) error
)

// ErrInvalidCfg indicates the invalid config value.
var ErrInvalidCfg = errors.New("invalid config value")

// Default is the default config.
var Default = Config{
	Chain:   chain.DefaultConfig,
	Hub:     snapshot.DefaultConfig,
	Indexer: delegateindex.DefaultConfig,
	EventLog: EventLog{
		Backend: "file",
		Path:    "delegation_events.jsonl",
	},
	DB: db.DefaultConfig,
	Rewards: Rewards{
		ArtifactDir:  "artifacts",
		GaugeWorkers: 4,
		VPBatchSize:  100,
	},
}

// Validates is the default validation list.
var Validates = []Validate{
	ValidateChain,
	ValidateRewards,
	ValidateEventLog,
}

// New creates a config instance. It first loads the default configs. If the config path is not empty, it will read
// from the file and override the default configs. By default, it will apply all validation functions.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}

	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	log.L().Debug("config loaded", zap.Strings("paths", configPaths))
	return cfg, nil
}

// ValidateChain validates the chain config.
func ValidateChain(cfg Config) error {
	if cfg.Chain.Endpoint == "" {
		return errors.Wrap(ErrInvalidCfg, "chain endpoint is empty")
	}
	if cfg.Chain.Registry != "" && !common.IsHexAddress(cfg.Chain.Registry) {
		return errors.Wrapf(ErrInvalidCfg, "bad registry address %q", cfg.Chain.Registry)
	}
	if cfg.Chain.Space == "" {
		return errors.Wrap(ErrInvalidCfg, "governance space is empty")
	}
	return nil
}

// ValidateRewards validates the rewards config.
func ValidateRewards(cfg Config) error {
	if !common.IsHexAddress(cfg.Rewards.Delegate) {
		return errors.Wrapf(ErrInvalidCfg, "bad delegate address %q", cfg.Rewards.Delegate)
	}
	if cfg.Rewards.ArtifactDir == "" {
		return errors.Wrap(ErrInvalidCfg, "artifact dir is empty")
	}
	return nil
}

// ValidateEventLog validates the event log config.
func ValidateEventLog(cfg Config) error {
	switch cfg.EventLog.Backend {
	case "file", "bolt":
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown event log backend %q", cfg.EventLog.Backend)
	}
	if cfg.EventLog.Path == "" {
		return errors.Wrap(ErrInvalidCfg, "event log path is empty")
	}
	return nil
}
