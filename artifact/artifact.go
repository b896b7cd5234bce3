// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package artifact persists the per-stage outputs of a reward period run:
// the voter distribution, the delegation split, and the merkle claim file.
// Each stage writes its own file with an atomic rename, so a failed run
// resumes from the last good stage and a crash never leaves a truncated
// artifact. Amounts are decimal strings, addresses lowercase hex.
package artifact

import (
	"encoding/json"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/pkg/util/fileutil"
)

// Artifact file names within a period directory.
const (
	RepartitionFile           = "repartition.json"
	RepartitionDelegationFile = "repartition_delegation.json"
	MerkleFile                = "merkle.json"
)

// ErrMalformedArtifact indicates an artifact file that does not match the
// expected shape.
var ErrMalformedArtifact = errors.New("malformed artifact")

func addrKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func parseAddr(key string) (common.Address, error) {
	if !common.IsHexAddress(key) {
		return common.Address{}, errors.Wrapf(ErrMalformedArtifact, "bad address %q", key)
	}
	return common.HexToAddress(key), nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.Wrapf(ErrMalformedArtifact, "bad amount %q", s)
	}
	return amount, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return fileutil.AtomicWriteFile(path, append(data, '\n'))
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(ErrMalformedArtifact, "%s: %v", path, err)
	}
	return nil
}
