// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/stakemesh/voterewards/delegateindex"
)

var (
	_setDelegateTopic   = crypto.Keccak256Hash([]byte("SetDelegate(address,bytes32,address)"))
	_clearDelegateTopic = crypto.Keccak256Hash([]byte("ClearDelegate(address,bytes32,address)"))

	// ErrMalformedLog indicates a registry log without the expected topics.
	ErrMalformedLog = errors.New("malformed registry log")
)

// RegistrySource reads delegate-changed events from the registry contract.
// It implements delegateindex.EventSource.
type RegistrySource struct {
	cli      *Client
	registry common.Address
	space    common.Hash
	workers  int
}

// NewRegistrySource creates an event source over the registry contract,
// filtered to one governance space.
func NewRegistrySource(cli *Client, registry common.Address, space string, timestampWorkers int) *RegistrySource {
	if timestampWorkers <= 0 {
		timestampWorkers = DefaultConfig.TimestampWorkers
	}
	return &RegistrySource{
		cli:      cli,
		registry: registry,
		space:    spaceTopic(space),
		workers:  timestampWorkers,
	}
}

// HeadBlock returns the current chain head.
func (s *RegistrySource) HeadBlock(ctx context.Context) (uint64, error) {
	head, err := s.cli.eth.BlockNumber(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return head, nil
}

// FetchRange returns the registry's delegation events in [from, to] for the
// configured space, in block order with timestamps filled in. Timestamps are
// fetched concurrently and reassembled in log order.
func (s *RegistrySource) FetchRange(ctx context.Context, from, to uint64) ([]delegateindex.Event, error) {
	logs, err := s.cli.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.registry},
		Topics: [][]common.Hash{
			{_setDelegateTopic, _clearDelegateTopic},
			nil,
			{s.space},
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	events := make([]delegateindex.Event, 0, len(logs))
	for _, l := range logs {
		ev, err := decodeLog(&l)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := s.fillTimestamps(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func decodeLog(l *types.Log) (delegateindex.Event, error) {
	if len(l.Topics) != 4 {
		return delegateindex.Event{}, errors.Wrapf(ErrMalformedLog, "tx %x index %d has %d topics", l.TxHash, l.Index, len(l.Topics))
	}
	kind := delegateindex.EventKindSet
	if l.Topics[0] == _clearDelegateTopic {
		kind = delegateindex.EventKindClear
	}
	return delegateindex.Event{
		Delegator:   common.BytesToAddress(l.Topics[1].Bytes()),
		Delegate:    common.BytesToAddress(l.Topics[3].Bytes()),
		Kind:        kind,
		BlockNumber: l.BlockNumber,
	}, nil
}

// fillTimestamps resolves the block timestamp of every event, one header
// fetch per distinct block, bounded by the worker limit. Workers write into
// a slice indexed like the block list, so no shared structure is mutated
// while it is being iterated.
func (s *RegistrySource) fillTimestamps(ctx context.Context, events []delegateindex.Event) error {
	seen := make(map[uint64]bool, len(events))
	blocks := make([]uint64, 0, len(events))
	for _, ev := range events {
		if !seen[ev.BlockNumber] {
			seen[ev.BlockNumber] = true
			blocks = append(blocks, ev.BlockNumber)
		}
	}
	times := make([]int64, len(blocks))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, num := range blocks {
		i, num := i, num
		g.Go(func() error {
			header, err := s.cli.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(num))
			if err != nil {
				return classify(err)
			}
			times[i] = int64(header.Time)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	byBlock := make(map[uint64]int64, len(blocks))
	for i, num := range blocks {
		byBlock[num] = times[i]
	}
	for i := range events {
		events[i].Timestamp = byBlock[events[i].BlockNumber]
	}
	return nil
}
