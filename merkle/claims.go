// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package merkle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/rewards"
)

// EmptyRoot is the sentinel root of a claim tree with no leaves. It is never
// the hash of anything.
var EmptyRoot = common.Hash{}

// ErrNilAmount indicates a claim cell with a nil amount.
var ErrNilAmount = errors.New("nil claim amount")

type (
	// TokenClaim is one (address, token) claim with its inclusion proof.
	TokenClaim struct {
		Amount *big.Int
		Proof  []common.Hash
	}

	// MerkleClaim is a full period's claim set. Immutable once published
	// since the root is advertised on-chain.
	MerkleClaim struct {
		MerkleRoot common.Hash
		Claims     map[common.Address]map[common.Address]*TokenClaim
	}
)

// LeafHash computes the double-keccak leaf for one claim triple. The outer
// hash defends the tree against second-preimage attacks from interior nodes.
func LeafHash(account, token common.Address, amount *big.Int) common.Hash {
	inner := crypto.Keccak256(
		account.Bytes(),
		token.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
	)
	return common.BytesToHash(crypto.Keccak256(inner))
}

// Build converts a distribution into a MerkleClaim with per-leaf proofs.
// Leaves are ordered by (address, token) so independent re-computation on the
// same distribution reproduces the root exactly. An empty distribution yields
// the EmptyRoot sentinel and no claims.
func Build(dist rewards.Distribution) (*MerkleClaim, error) {
	type triple struct {
		account common.Address
		token   common.Address
		amount  *big.Int
	}
	var triples []triple
	for _, account := range dist.Recipients() {
		tokens := dist[account]
		for _, token := range rewards.SortedTokens(tokens) {
			amount := tokens[token]
			if amount == nil {
				return nil, errors.Wrapf(ErrNilAmount, "account %s token %s", account.Hex(), token.Hex())
			}
			triples = append(triples, triple{account: account, token: token, amount: amount})
		}
	}
	if len(triples) == 0 {
		return &MerkleClaim{
			MerkleRoot: EmptyRoot,
			Claims:     make(map[common.Address]map[common.Address]*TokenClaim),
		}, nil
	}

	leaves := make([]common.Hash, len(triples))
	for i, tr := range triples {
		leaves[i] = LeafHash(tr.account, tr.token, tr.amount)
	}
	tree := NewTree(leaves)

	claims := make(map[common.Address]map[common.Address]*TokenClaim)
	for i, tr := range triples {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, err
		}
		tokens, ok := claims[tr.account]
		if !ok {
			tokens = make(map[common.Address]*TokenClaim)
			claims[tr.account] = tokens
		}
		tokens[tr.token] = &TokenClaim{
			Amount: new(big.Int).Set(tr.amount),
			Proof:  proof,
		}
	}
	return &MerkleClaim{
		MerkleRoot: tree.Root(),
		Claims:     claims,
	}, nil
}

// Distribution re-derives the plain distribution from the claim set.
func (mc *MerkleClaim) Distribution() rewards.Distribution {
	dist := make(rewards.Distribution)
	for account, tokens := range mc.Claims {
		for token, claim := range tokens {
			dist.Add(account, token, claim.Amount)
		}
	}
	return dist
}

// Verify checks one claim's proof against the tree root.
func (mc *MerkleClaim) Verify(account, token common.Address, amount *big.Int, proof []common.Hash) bool {
	if mc.MerkleRoot == EmptyRoot {
		return false
	}
	return Verify(LeafHash(account, token, amount), proof, mc.MerkleRoot)
}

// Merge combines two claim trees built from independently collected reward
// sources. Amounts for matching (address, token) pairs are summed and a brand
// new tree is built; the input trees' proofs are invalid for the merged leaf
// set and are discarded. Merging two empty trees yields the EmptyRoot
// sentinel.
func Merge(a, b *MerkleClaim) (*MerkleClaim, error) {
	merged := a.Distribution()
	merged.Merge(b.Distribution())
	return Build(merged)
}
