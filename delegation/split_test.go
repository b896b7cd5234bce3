// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package delegation

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/voterewards/rewards"
)

var (
	_delegate = common.HexToAddress("0xde1e")
	_tokenT   = common.HexToAddress("0xD533a949740bb3306d119CC777fa900bA034cd52")
	_tokenU   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	_d1 = common.HexToAddress("0xd1")
	_d2 = common.HexToAddress("0xd2")
	_d3 = common.HexToAddress("0xd3")
)

type stubOracle struct {
	vps   map[common.Address]float64
	calls int
	sizes []int
}

func (o *stubOracle) VotingPowerAt(_ context.Context, addrs []common.Address, _ uint64) (map[common.Address]float64, error) {
	o.calls++
	o.sizes = append(o.sizes, len(addrs))
	out := make(map[common.Address]float64, len(addrs))
	for _, a := range addrs {
		out[a] = o.vps[a]
	}
	return out, nil
}

type stubRegistry struct {
	forwarders map[common.Address]bool
}

func (r *stubRegistry) IsForwarder(_ context.Context, addrs []common.Address, _ uint64) (map[common.Address]bool, error) {
	out := make(map[common.Address]bool, len(addrs))
	for _, a := range addrs {
		out[a] = r.forwarders[a]
	}
	return out, nil
}

func delegateDist(amounts map[common.Address]int64) rewards.Distribution {
	dist := make(rewards.Distribution)
	for token, amt := range amounts {
		dist.Add(_delegate, token, big.NewInt(amt))
	}
	return dist
}

func TestSplitExactRemainder(t *testing.T) {
	r := require.New(t)

	// three delegators with vp [10, 20, 70] split 999 units
	oracle := &stubOracle{vps: map[common.Address]float64{_d1: 10, _d2: 20, _d3: 70}}
	e := NewSplitEngine(_delegate, oracle)
	dist := delegateDist(map[common.Address]int64{_tokenT: 999})

	res, err := e.Split(context.Background(), dist, []common.Address{_d1, _d2, _d3}, nil, 1000)
	r.NoError(err)
	r.NotNil(res)
	r.Nil(dist[_delegate])

	r.Equal(big.NewInt(99), res.Allocations[_d1][_tokenT])
	r.Equal(big.NewInt(199), res.Allocations[_d2][_tokenT])
	r.Equal(big.NewInt(701), res.Allocations[_d3][_tokenT])
	r.Empty(res.Dust)

	// conservation
	totals := res.Allocations.TokenTotals()
	r.Equal(big.NewInt(999), totals[_tokenT])
}

func TestSplitFixedPointReportsDust(t *testing.T) {
	r := require.New(t)

	oracle := &stubOracle{vps: map[common.Address]float64{_d1: 10, _d2: 20, _d3: 70}}
	e := NewSplitEngine(_delegate, oracle, WithDustPolicy(DustPolicyFixedPoint))
	dist := delegateDist(map[common.Address]int64{_tokenT: 999})

	res, err := e.Split(context.Background(), dist, []common.Address{_d1, _d2, _d3}, nil, 1000)
	r.NoError(err)
	r.NotNil(res)

	r.Equal(big.NewInt(99), res.Allocations[_d1][_tokenT])
	r.Equal(big.NewInt(199), res.Allocations[_d2][_tokenT])
	r.Equal(big.NewInt(699), res.Allocations[_d3][_tokenT])
	// 999 - 99 - 199 - 699 = 2 units stay with the delegate, reported
	r.Equal(big.NewInt(2), res.Dust[_tokenT])
	r.Equal(big.NewInt(2), res.Allocations[_delegate][_tokenT])

	// reported residual keeps the split conservative
	totals := res.Allocations.TokenTotals()
	r.Equal(big.NewInt(999), totals[_tokenT])
}

func TestSplitMultiTokenConservation(t *testing.T) {
	r := require.New(t)

	oracle := &stubOracle{vps: map[common.Address]float64{_d1: 3.5, _d2: 11.25, _d3: 0.0007}}
	e := NewSplitEngine(_delegate, oracle)
	dist := delegateDist(map[common.Address]int64{_tokenT: 1000000007, _tokenU: 13})

	res, err := e.Split(context.Background(), dist, []common.Address{_d1, _d2, _d3}, nil, 1000)
	r.NoError(err)
	totals := res.Allocations.TokenTotals()
	r.Equal(big.NewInt(1000000007), totals[_tokenT])
	r.Equal(big.NewInt(13), totals[_tokenU])
}

func TestSplitExcludesDirectVoters(t *testing.T) {
	r := require.New(t)

	oracle := &stubOracle{vps: map[common.Address]float64{_d1: 50, _d2: 50, _d3: 50}}
	e := NewSplitEngine(_delegate, oracle)
	dist := delegateDist(map[common.Address]int64{_tokenT: 100})

	// d2 voted directly, must not be double counted
	res, err := e.Split(context.Background(), dist, []common.Address{_d1, _d2, _d3}, []common.Address{_d2}, 1000)
	r.NoError(err)
	r.NotNil(res)
	r.Nil(res.Allocations[_d2])
	r.Equal(big.NewInt(50), res.Allocations[_d1][_tokenT])
	r.Equal(big.NewInt(50), res.Allocations[_d3][_tokenT])
}

func TestSplitNoDelegateRowIsNoop(t *testing.T) {
	r := require.New(t)

	oracle := &stubOracle{vps: map[common.Address]float64{_d1: 10}}
	e := NewSplitEngine(_delegate, oracle)
	dist := make(rewards.Distribution)
	dist.Add(_d1, _tokenT, big.NewInt(42))

	res, err := e.Split(context.Background(), dist, []common.Address{_d1}, nil, 1000)
	r.NoError(err)
	r.Nil(res)
	// oracle never consulted
	r.Zero(oracle.calls)
	r.Equal(big.NewInt(42), dist[_d1][_tokenT])
}

func TestSplitZeroDelegatorPowerKeepsDelegateRow(t *testing.T) {
	r := require.New(t)

	oracle := &stubOracle{vps: map[common.Address]float64{}}
	e := NewSplitEngine(_delegate, oracle)
	dist := delegateDist(map[common.Address]int64{_tokenT: 100})

	res, err := e.Split(context.Background(), dist, []common.Address{_d1, _d2}, nil, 1000)
	r.NoError(err)
	r.Nil(res)
	r.Equal(big.NewInt(100), dist[_delegate][_tokenT])
}

func TestSplitForwarderBuckets(t *testing.T) {
	r := require.New(t)

	oracle := &stubOracle{vps: map[common.Address]float64{_d1: 25, _d2: 75}}
	registry := &stubRegistry{forwarders: map[common.Address]bool{_d1: true}}
	e := NewSplitEngine(_delegate, oracle, WithForwarderRegistry(registry))
	dist := delegateDist(map[common.Address]int64{_tokenT: 1000})

	res, err := e.Split(context.Background(), dist, []common.Address{_d1, _d2}, nil, 1000)
	r.NoError(err)
	r.Len(res.Shares, 2)
	for _, ds := range res.Shares {
		sum := new(big.Int).Add(ds.ShareForwarder, ds.ShareNonForwarder)
		r.Equal(ds.Share, sum)
		if ds.Address == _d1 {
			r.Equal(ds.Share, ds.ShareForwarder)
			r.Zero(ds.ShareNonForwarder.Sign())
		} else {
			r.Equal(ds.Share, ds.ShareNonForwarder)
			r.Zero(ds.ShareForwarder.Sign())
		}
	}
}

func TestSplitBatchesOracleLookups(t *testing.T) {
	r := require.New(t)

	vps := make(map[common.Address]float64)
	var delegators []common.Address
	for i := 1; i <= 25; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i)))
		vps[addr] = float64(i)
		delegators = append(delegators, addr)
	}
	oracle := &stubOracle{vps: vps}
	e := NewSplitEngine(_delegate, oracle, WithVPBatchSize(10))
	dist := delegateDist(map[common.Address]int64{_tokenT: 12345})

	res, err := e.Split(context.Background(), dist, delegators, nil, 1000)
	r.NoError(err)
	r.NotNil(res)
	r.Equal(3, oracle.calls)
	r.Equal([]int{10, 10, 5}, oracle.sizes)
	totals := res.Allocations.TokenTotals()
	r.Equal(big.NewInt(12345), totals[_tokenT])
}
