// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package artifact

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/voterewards/delegation"
	"github.com/stakemesh/voterewards/merkle"
	"github.com/stakemesh/voterewards/rewards"
)

var (
	_delegate = common.HexToAddress("0x989AEb4d175e16225E39E87d0D97A3360524AD80")
	_tokenA   = common.HexToAddress("0xD533a949740bb3306d119CC777fa900bA034cd52")
	_tokenB   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	_voterA   = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	_voterB   = common.HexToAddress("0x0000000000000000000000000000000000000B22")
	_voterC   = common.HexToAddress("0x0000000000000000000000000000000000000C33")
)

func TestRepartitionRoundTrip(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), RepartitionFile)

	dist := make(rewards.Distribution)
	dist.Add(_voterA, _tokenA, big.NewInt(240))
	dist.Add(_voterB, _tokenA, big.NewInt(60))
	dist.Add(_voterB, _tokenB, new(big.Int).Mul(big.NewInt(1e18), big.NewInt(12345)))

	r.NoError(WriteRepartition(path, dist))
	got, err := ReadRepartition(path)
	r.NoError(err)
	r.Equal(dist, got)
}

func TestRepartitionMalformed(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), RepartitionFile)

	for name, body := range map[string]string{
		"truncated":  `{"distribution":{"0x`,
		"bad addr":   `{"distribution":{"nope":{"tokens":{}}}}`,
		"bad amount": `{"distribution":{"0x0000000000000000000000000000000000000a11":{"tokens":{"0xd533a949740bb3306d119cc777fa900ba034cd52":"12.5"}}}}`,
	} {
		r.NoError(os.WriteFile(path, []byte(body), 0600))
		_, err := ReadRepartition(path)
		r.True(errors.Is(err, ErrMalformedArtifact), name)
	}
}

func splitFixture() *delegation.SplitResult {
	// shares 0.099, 0.199 and the remainder, in 1e18 fixed point
	return &delegation.SplitResult{
		Delegate: _delegate,
		DelegateTokens: map[common.Address]*big.Int{
			_tokenA: big.NewInt(1000),
			_tokenB: big.NewInt(999999999),
		},
		Shares: []delegation.DelegatorShare{
			{
				Address:           _voterA,
				Share:             big.NewInt(99e15),
				ShareForwarder:    big.NewInt(99e15),
				ShareNonForwarder: new(big.Int),
			},
			{
				Address:           _voterB,
				Share:             big.NewInt(199e15),
				ShareForwarder:    new(big.Int),
				ShareNonForwarder: big.NewInt(199e15),
			},
			{
				Address:           _voterC,
				Share:             big.NewInt(702e15),
				ShareForwarder:    new(big.Int),
				ShareNonForwarder: big.NewInt(702e15),
			},
		},
	}
}

func TestDelegationSplitRoundTrip(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), RepartitionDelegationFile)

	res := splitFixture()
	r.NoError(WriteDelegationSplit(path, res))

	// the address entries sit at the top level, not under a wrapper object
	raw, err := os.ReadFile(path)
	r.NoError(err)
	var shape map[string]json.RawMessage
	r.NoError(json.Unmarshal(raw, &shape))
	r.NotContains(shape, "distribution")
	r.Contains(shape, "0x989aeb4d175e16225e39e87d0d97a3360524ad80")

	got, err := ReadDelegationSplit(path)
	r.NoError(err)
	r.Equal(_delegate, got.Delegate)
	r.Equal(res.DelegateTokens, got.Tokens)
	r.Equal(res.Shares, got.Shares)
}

func TestDelegationSplitWrappedCompat(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.json")
	r.NoError(WriteDelegationSplit(plain, splitFixture()))
	want, err := ReadDelegationSplit(plain)
	r.NoError(err)

	// older files wrap the same entries in a "distribution" object
	raw, err := os.ReadFile(plain)
	r.NoError(err)
	wrapped := filepath.Join(dir, "wrapped.json")
	r.NoError(os.WriteFile(wrapped, []byte(`{"distribution":`+string(raw)+`}`), 0600))

	got, err := ReadDelegationSplit(wrapped)
	r.NoError(err)
	r.Equal(want, got)
}

func TestDelegationSummaryFormSameAmounts(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()

	perDelegator := filepath.Join(dir, "per_delegator.json")
	r.NoError(WriteDelegationSplit(perDelegator, splitFixture()))
	fromPerDelegator, err := ReadDelegationSplit(perDelegator)
	r.NoError(err)

	// the same split in the pre-aggregated summary form
	summary := filepath.Join(dir, "summary.json")
	r.NoError(os.WriteFile(summary, []byte(`{
		"totalTokens":{
			"0xd533a949740bb3306d119cc777fa900ba034cd52":"1000",
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48":"999999999"
		},
		"totalForwardersShare":"99000000000000000",
		"totalNonForwardersShare":"901000000000000000",
		"forwarders":{
			"0x0000000000000000000000000000000000000a11":"99000000000000000"
		},
		"nonForwarders":{
			"0x0000000000000000000000000000000000000b22":"199000000000000000",
			"0x0000000000000000000000000000000000000c33":"702000000000000000"
		}
	}`), 0600))
	fromSummary, err := ReadDelegationSplit(summary)
	r.NoError(err)

	// both forms agree on the effective per-delegator amounts
	r.Equal(fromPerDelegator.Amounts(), fromSummary.Amounts())

	amounts := fromSummary.Amounts()
	r.Equal(big.NewInt(99), amounts[_voterA][_tokenA])
	r.Equal(big.NewInt(199), amounts[_voterB][_tokenA])
	r.Equal(big.NewInt(702), amounts[_voterC][_tokenA])
}

func TestDelegationSplitMalformed(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), RepartitionDelegationFile)

	for name, body := range map[string]string{
		"no delegate row": `{"0x0000000000000000000000000000000000000a11":{"share":"1"}}`,
		"two delegate rows": `{
			"0x0000000000000000000000000000000000000a11":{"tokens":{}},
			"0x0000000000000000000000000000000000000b22":{"tokens":{}}
		}`,
		"empty entry": `{"0x0000000000000000000000000000000000000a11":{}}`,
		"bad wrapper": `{"distribution":42}`,
	} {
		r.NoError(os.WriteFile(path, []byte(body), 0600))
		_, err := ReadDelegationSplit(path)
		r.True(errors.Is(err, ErrMalformedArtifact), name)
	}
}

func TestMerkleRoundTrip(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), MerkleFile)

	dist := make(rewards.Distribution)
	dist.Add(_voterA, _tokenA, big.NewInt(240))
	dist.Add(_voterB, _tokenA, big.NewInt(60))
	dist.Add(_voterB, _tokenB, big.NewInt(7))
	mc, err := merkle.Build(dist)
	r.NoError(err)

	r.NoError(WriteMerkle(path, mc))
	got, err := ReadMerkle(path)
	r.NoError(err)
	r.Equal(mc.MerkleRoot, got.MerkleRoot)
	r.Equal(mc.Distribution(), got.Distribution())

	// proofs survive the round trip and still verify
	for account, tokens := range got.Claims {
		for token, claim := range tokens {
			r.True(got.Verify(account, token, claim.Amount, claim.Proof))
		}
	}
}
