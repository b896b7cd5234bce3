// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package artifact

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/stakemesh/voterewards/merkle"
)

type (
	merkleTreeFile struct {
		MerkleRoot string                     `json:"merkleRoot"`
		Claims     map[string]merkleClaimsRow `json:"claims"`
	}

	merkleClaimsRow struct {
		Tokens map[string]merkleTokenClaim `json:"tokens"`
	}

	merkleTokenClaim struct {
		Amount string   `json:"amount"`
		Proof  []string `json:"proof"`
	}
)

// WriteMerkle writes the merkle claim artifact.
func WriteMerkle(path string, mc *merkle.MerkleClaim) error {
	out := merkleTreeFile{
		MerkleRoot: mc.MerkleRoot.Hex(),
		Claims:     make(map[string]merkleClaimsRow, len(mc.Claims)),
	}
	for account, tokens := range mc.Claims {
		row := merkleClaimsRow{Tokens: make(map[string]merkleTokenClaim, len(tokens))}
		for token, claim := range tokens {
			proof := make([]string, len(claim.Proof))
			for i, h := range claim.Proof {
				proof[i] = h.Hex()
			}
			row.Tokens[addrKey(token)] = merkleTokenClaim{
				Amount: claim.Amount.String(),
				Proof:  proof,
			}
		}
		out.Claims[addrKey(account)] = row
	}
	return writeJSON(path, out)
}

// ReadMerkle reads a merkle claim artifact back.
func ReadMerkle(path string) (*merkle.MerkleClaim, error) {
	var in merkleTreeFile
	if err := readJSON(path, &in); err != nil {
		return nil, err
	}
	mc := &merkle.MerkleClaim{
		MerkleRoot: common.HexToHash(in.MerkleRoot),
		Claims:     make(map[common.Address]map[common.Address]*merkle.TokenClaim, len(in.Claims)),
	}
	for accountStr, row := range in.Claims {
		account, err := parseAddr(accountStr)
		if err != nil {
			return nil, err
		}
		tokens := make(map[common.Address]*merkle.TokenClaim, len(row.Tokens))
		for tokenStr, claim := range row.Tokens {
			token, err := parseAddr(tokenStr)
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(claim.Amount)
			if err != nil {
				return nil, err
			}
			proof := make([]common.Hash, len(claim.Proof))
			for i, h := range claim.Proof {
				proof[i] = common.HexToHash(h)
			}
			tokens[token] = &merkle.TokenClaim{Amount: amount, Proof: proof}
		}
		mc.Claims[account] = tokens
	}
	return mc, nil
}
