// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package artifact

import (
	"github.com/stakemesh/voterewards/rewards"
)

type (
	repartitionFile struct {
		Distribution map[string]repartitionRow `json:"distribution"`
	}

	repartitionRow struct {
		Tokens map[string]string `json:"tokens"`
	}
)

// WriteRepartition writes the per-voter distribution artifact.
func WriteRepartition(path string, dist rewards.Distribution) error {
	out := repartitionFile{Distribution: make(map[string]repartitionRow, len(dist))}
	for addr, tokens := range dist {
		row := repartitionRow{Tokens: make(map[string]string, len(tokens))}
		for token, amount := range tokens {
			row.Tokens[addrKey(token)] = amount.String()
		}
		out.Distribution[addrKey(addr)] = row
	}
	return writeJSON(path, out)
}

// ReadRepartition reads a distribution artifact back.
func ReadRepartition(path string) (rewards.Distribution, error) {
	var in repartitionFile
	if err := readJSON(path, &in); err != nil {
		return nil, err
	}
	dist := make(rewards.Distribution, len(in.Distribution))
	for addrStr, row := range in.Distribution {
		addr, err := parseAddr(addrStr)
		if err != nil {
			return nil, err
		}
		for tokenStr, amountStr := range row.Tokens {
			token, err := parseAddr(tokenStr)
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(amountStr)
			if err != nil {
				return nil, err
			}
			dist.Add(addr, token, amount)
		}
	}
	return dist, nil
}
