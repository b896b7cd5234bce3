// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package chain implements the on-chain collaborators: the delegate registry
// event source, the voting power oracle, and the forwarder registry reader.
// All of them classify provider failures so callers can retry sensibly.
package chain

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/delegateindex"
)

// Config is the chain client config.
type Config struct {
	// Endpoint is the archive node RPC endpoint.
	Endpoint string `yaml:"endpoint"`
	// Registry is the delegate registry contract address.
	Registry string `yaml:"registry"`
	// RegistryDeployBlock is the registry's creation block, the lower bound
	// of the first indexer run.
	RegistryDeployBlock uint64 `yaml:"registryDeployBlock"`
	// Space is the governance space identifier the registry filters on.
	Space string `yaml:"space"`
	// PowerToken is the voting power token contract address.
	PowerToken string `yaml:"powerToken"`
	// ForwarderRegistry is the reward forwarding registry contract address.
	ForwarderRegistry string `yaml:"forwarderRegistry"`
	// TimestampWorkers bounds concurrent block header fetches.
	TimestampWorkers int `yaml:"timestampWorkers"`
}

// DefaultConfig is the default chain client config.
var DefaultConfig = Config{
	TimestampWorkers: 10,
}

// Client bundles the raw RPC client and its ethclient wrapper so batch calls
// and typed calls share one connection.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// Dial connects to the endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", endpoint)
	}
	return &Client{rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// provider error fragments seen from geth, erigon and hosted providers when
// a log query response exceeds their size limit
var _oversizeFragments = []string{
	"query returned more than",
	"response size exceeded",
	"log response size exceeded",
	"block range is too large",
	"exceeds the range",
}

// classify maps a provider error onto the indexer's retry taxonomy. Context
// cancellation passes through untouched; oversized-response rejections become
// ErrRangeTooLarge; everything else from the wire is treated as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range _oversizeFragments {
		if strings.Contains(msg, frag) {
			return errors.Wrap(delegateindex.ErrRangeTooLarge, err.Error())
		}
	}
	return errors.Wrap(delegateindex.ErrTransient, err.Error())
}

// spaceTopic encodes a space identifier the way the registry indexes it, as
// UTF-8 bytes right-padded to 32.
func spaceTopic(space string) common.Hash {
	var h common.Hash
	copy(h[:], space)
	return h
}
