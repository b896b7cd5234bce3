// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

var (
	_balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	_recipientSelector = crypto.Keccak256([]byte("recipients(address)"))[:4]

	// one ether, the power token's fixed-point base
	_powerScale = new(big.Float).SetInt64(1e18)
)

// PowerOracle resolves historical voting power by batch-calling the power
// token's balanceOf at the snapshot block. It implements
// delegation.VotingPowerOracle.
type PowerOracle struct {
	cli   *Client
	token common.Address
}

// NewPowerOracle creates an oracle over the power token contract.
func NewPowerOracle(cli *Client, token common.Address) *PowerOracle {
	return &PowerOracle{cli: cli, token: token}
}

// VotingPowerAt returns each address's voting power at the given block, in
// whole-token units. The whole batch is one upstream round-trip.
func (o *PowerOracle) VotingPowerAt(ctx context.Context, addrs []common.Address, block uint64) (map[common.Address]float64, error) {
	results, err := batchCall(ctx, o.cli, o.token, _balanceOfSelector, addrs, block)
	if err != nil {
		return nil, err
	}
	powers := make(map[common.Address]float64, len(addrs))
	for i, addr := range addrs {
		raw := new(big.Float).SetInt(new(big.Int).SetBytes(results[i]))
		power, _ := new(big.Float).Quo(raw, _powerScale).Float64()
		powers[addr] = power
	}
	return powers, nil
}

// ForwarderReader reads the reward forwarding registry: an address with a
// nonzero recipient entry has forwarding configured. It implements
// delegation.ForwarderRegistry.
type ForwarderReader struct {
	cli      *Client
	registry common.Address
}

// NewForwarderReader creates a reader over the forwarding registry contract.
func NewForwarderReader(cli *Client, registry common.Address) *ForwarderReader {
	return &ForwarderReader{cli: cli, registry: registry}
}

// IsForwarder reports which of the addresses had forwarding configured at the
// given block. The whole batch is one upstream round-trip.
func (f *ForwarderReader) IsForwarder(ctx context.Context, addrs []common.Address, block uint64) (map[common.Address]bool, error) {
	results, err := batchCall(ctx, f.cli, f.registry, _recipientSelector, addrs, block)
	if err != nil {
		return nil, err
	}
	flags := make(map[common.Address]bool, len(addrs))
	for i, addr := range addrs {
		flags[addr] = new(big.Int).SetBytes(results[i]).Sign() != 0
	}
	return flags, nil
}

// batchCall issues one eth_call per address against the contract at the given
// block, all in a single batched round-trip, and returns the raw results in
// input order.
func batchCall(ctx context.Context, cli *Client, contract common.Address, selector []byte, addrs []common.Address, block uint64) ([][]byte, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	blockArg := hexutil.EncodeUint64(block)
	outs := make([]hexutil.Bytes, len(addrs))
	batch := make([]rpc.BatchElem, len(addrs))
	for i, addr := range addrs {
		data := make([]byte, 0, 36)
		data = append(data, selector...)
		data = append(data, common.LeftPadBytes(addr.Bytes(), 32)...)
		batch[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   contract,
					"data": hexutil.Bytes(data),
				},
				blockArg,
			},
			Result: &outs[i],
		}
	}
	if err := cli.rpc.BatchCallContext(ctx, batch); err != nil {
		return nil, classify(err)
	}
	results := make([][]byte, len(addrs))
	for i := range batch {
		if batch[i].Error != nil {
			return nil, errors.Wrapf(classify(batch[i].Error), "call for %s failed", addrs[i])
		}
		results[i] = outs[i]
	}
	return results, nil
}
