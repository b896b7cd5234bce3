// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package merkle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/voterewards/rewards"
)

var (
	_tokenA = common.HexToAddress("0xD533a949740bb3306d119CC777fa900bA034cd52")
	_tokenB = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func leafOf(b byte) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte{b}))
}

func TestTreeProofs(t *testing.T) {
	r := require.New(t)

	for _, n := range []int{1, 2, 3, 4, 5, 8, 13} {
		leaves := make([]common.Hash, n)
		for i := range leaves {
			leaves[i] = leafOf(byte(i))
		}
		tree := NewTree(leaves)
		root := tree.Root()
		for i, leaf := range leaves {
			proof, err := tree.Proof(i)
			r.NoError(err)
			r.True(Verify(leaf, proof, root), "n=%d leaf=%d", n, i)
			// a proof never verifies a different leaf
			r.False(Verify(leafOf(0xff), proof, root))
		}
		_, err := tree.Proof(n)
		r.Error(err)
	}
}

func TestTreeRootDeterministic(t *testing.T) {
	r := require.New(t)

	leaves := []common.Hash{leafOf(1), leafOf(2), leafOf(3)}
	r.Equal(NewTree(leaves).Root(), NewTree(leaves).Root())

	// pair sorting makes sibling order irrelevant within a pair
	swapped := []common.Hash{leaves[1], leaves[0], leaves[2]}
	r.Equal(NewTree(leaves).Root(), NewTree(swapped).Root())
}

func TestEmptyTree(t *testing.T) {
	r := require.New(t)

	tree := NewTree(nil)
	r.Equal(common.Hash{}, tree.Root())
	r.Zero(tree.LeafCount())
	_, err := tree.Proof(0)
	r.Error(err)
}

func testDistribution() rewards.Distribution {
	dist := make(rewards.Distribution)
	dist.Add(common.HexToAddress("0x11"), _tokenA, big.NewInt(240))
	dist.Add(common.HexToAddress("0x22"), _tokenA, big.NewInt(60))
	dist.Add(common.HexToAddress("0x22"), _tokenB, big.NewInt(1000000))
	dist.Add(common.HexToAddress("0x33"), _tokenB, big.NewInt(7))
	return dist
}

func TestBuildRoundTrip(t *testing.T) {
	r := require.New(t)

	mc, err := Build(testDistribution())
	r.NoError(err)
	r.NotEqual(EmptyRoot, mc.MerkleRoot)

	// every claim verifies against the root with its own proof
	for account, tokens := range mc.Claims {
		for token, claim := range tokens {
			r.True(mc.Verify(account, token, claim.Amount, claim.Proof))
		}
	}

	// tampering with one amount invalidates exactly that leaf's proof
	victim := common.HexToAddress("0x22")
	claim := mc.Claims[victim][_tokenA]
	r.False(mc.Verify(victim, _tokenA, new(big.Int).Add(claim.Amount, big.NewInt(1)), claim.Proof))
	other := mc.Claims[common.HexToAddress("0x11")][_tokenA]
	r.True(mc.Verify(common.HexToAddress("0x11"), _tokenA, other.Amount, other.Proof))

	// re-derived distribution equals the input
	r.Equal(testDistribution(), mc.Distribution())

	// rebuilding reproduces the root
	again, err := Build(testDistribution())
	r.NoError(err)
	r.Equal(mc.MerkleRoot, again.MerkleRoot)
}

func TestBuildEmpty(t *testing.T) {
	r := require.New(t)

	mc, err := Build(make(rewards.Distribution))
	r.NoError(err)
	r.Equal(EmptyRoot, mc.MerkleRoot)
	r.Empty(mc.Claims)
	r.False(mc.Verify(common.HexToAddress("0x11"), _tokenA, big.NewInt(1), nil))
}

func TestMergeCommutative(t *testing.T) {
	r := require.New(t)

	a, err := Build(testDistribution())
	r.NoError(err)

	other := make(rewards.Distribution)
	other.Add(common.HexToAddress("0x22"), _tokenA, big.NewInt(40)) // overlaps
	other.Add(common.HexToAddress("0x44"), _tokenB, big.NewInt(13))
	b, err := Build(other)
	r.NoError(err)

	ab, err := Merge(a, b)
	r.NoError(err)
	ba, err := Merge(b, a)
	r.NoError(err)
	r.Equal(ab.MerkleRoot, ba.MerkleRoot)
	r.Equal(ab.Distribution(), ba.Distribution())

	// overlapping cell summed
	r.Equal(big.NewInt(100), ab.Claims[common.HexToAddress("0x22")][_tokenA].Amount)

	// merged claims verify against the merged root
	for account, tokens := range ab.Claims {
		for token, claim := range tokens {
			r.True(ab.Verify(account, token, claim.Amount, claim.Proof))
		}
	}
}

func TestMergeWithEmpty(t *testing.T) {
	r := require.New(t)

	a, err := Build(testDistribution())
	r.NoError(err)
	empty, err := Build(make(rewards.Distribution))
	r.NoError(err)

	merged, err := Merge(a, empty)
	r.NoError(err)
	r.Equal(a.Distribution(), merged.Distribution())
	r.Equal(a.MerkleRoot, merged.MerkleRoot)

	// two empty trees stay at the sentinel
	still, err := Merge(empty, empty)
	r.NoError(err)
	r.Equal(EmptyRoot, still.MerkleRoot)
}
