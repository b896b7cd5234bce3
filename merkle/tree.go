// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package merkle builds the claim tree advertised on-chain and the per-leaf
// inclusion proofs users submit to claim.
package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrLeafIndex indicates a proof was requested for an out-of-range leaf.
var ErrLeafIndex = errors.New("leaf index out of range")

// Tree is a merkle tree over 32-byte leaves. Sibling pairs are sorted before
// hashing, so the proof order is canonical and verification needs no position
// bits; an odd node is carried up unhashed.
type Tree struct {
	layers [][]common.Hash
}

// NewTree builds the full tree bottom-up from the given leaves. Leaf order is
// the caller's responsibility; pass a deterministically ordered slice to get
// reproducible roots.
func NewTree(leaves []common.Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}
	layer := make([]common.Hash, len(leaves))
	copy(layer, leaves)
	layers := [][]common.Hash{layer}
	for len(layer) > 1 {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		layers = append(layers, next)
		layer = next
	}
	return &Tree{layers: layers}
}

// Root returns the tree root, or the zero hash for an empty tree.
func (t *Tree) Root() common.Hash {
	if len(t.layers) == 0 {
		return common.Hash{}
	}
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Proof returns the sibling hashes proving inclusion of the leaf at index i.
// Proofs are tree-dependent and must be generated after the full tree is
// built.
func (t *Tree) Proof(i int) ([]common.Hash, error) {
	if len(t.layers) == 0 || i < 0 || i >= len(t.layers[0]) {
		return nil, errors.Wrapf(ErrLeafIndex, "index %d, %d leaves", i, t.LeafCount())
	}
	proof := []common.Hash{}
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := i ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		i >>= 1
	}
	return proof, nil
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	if len(t.layers) == 0 {
		return 0
	}
	return len(t.layers[0])
}

// Verify checks a sorted-pair merkle proof against the root.
func Verify(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return common.BytesToHash(crypto.Keccak256(a[:], b[:]))
}
