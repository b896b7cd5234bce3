// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stakemesh/voterewards/config"
	"github.com/stakemesh/voterewards/db"
	"github.com/stakemesh/voterewards/delegateindex"
	"github.com/stakemesh/voterewards/governance"
	"github.com/stakemesh/voterewards/pkg/log"
	"github.com/stakemesh/voterewards/rewards"
)

var _configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rewardctl [command] [flags]",
	Short: "Command-line interface for governance reward attribution",
	Long: `rewardctl indexes delegation events, distributes gauge rewards across voters,
splits the pooled delegate's share across its delegators and builds the merkle claim file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return log.InitLoggers(cfg.Log)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&_configPath, "config", "c", "", "config file path")
}

func loadConfig() (config.Config, error) {
	return config.New([]string{_configPath})
}

// newEventLog opens the configured event log backend.
func newEventLog(cfg config.Config) delegateindex.EventLog {
	if cfg.EventLog.Backend == "bolt" {
		dbCfg := cfg.DB
		dbCfg.DbPath = cfg.EventLog.Path
		return delegateindex.NewKVEventLog(db.NewBoltDB(dbCfg))
	}
	return delegateindex.NewFileEventLog(cfg.EventLog.Path)
}

type rewardLineFile struct {
	Gauge  string `json:"gauge"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// loadRewardLines reads reward lines from a JSON file of
// [{gauge, token, amount}] records with decimal string amounts.
func loadRewardLines(path string) ([]rewards.RewardLine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read reward lines %s", path)
	}
	var raw []rewardLineFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to decode reward lines %s", path)
	}
	lines := make([]rewards.RewardLine, 0, len(raw))
	for i, l := range raw {
		if !common.IsHexAddress(l.Gauge) || !common.IsHexAddress(l.Token) {
			return nil, errors.Errorf("reward line %d has a bad address", i)
		}
		amount, ok := new(big.Int).SetString(l.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return nil, errors.Errorf("reward line %d has a bad amount %q", i, l.Amount)
		}
		lines = append(lines, rewards.RewardLine{
			Gauge:  common.HexToAddress(l.Gauge),
			Token:  common.HexToAddress(l.Token),
			Amount: amount,
		})
	}
	return lines, nil
}

// loadGaugeMap reads the gauge to choice id mapping from a JSON file of
// {gaugeAddress: 1-indexed choice id}.
func loadGaugeMap(path string) (governance.GaugeChoiceMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read gauge map %s", path)
	}
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to decode gauge map %s", path)
	}
	choices := make(governance.GaugeChoiceMap, len(raw))
	for gauge, choiceID := range raw {
		if !common.IsHexAddress(gauge) {
			return nil, errors.Errorf("bad gauge address %q", gauge)
		}
		choices[common.HexToAddress(gauge)] = choiceID
	}
	return choices, nil
}
