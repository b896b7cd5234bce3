// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package artifact

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/delegation"
	"github.com/stakemesh/voterewards/rewards"
)

var _shareScale = big.NewInt(1e18)

type (
	// DelegationSplit is the artifact-level view of a delegation split. Both
	// on-disk forms decode into it, so they round-trip to identical
	// per-delegator amounts. Shares are 1e18 fixed-point fractions of the
	// delegate's aggregate.
	DelegationSplit struct {
		Delegate common.Address
		Tokens   map[common.Address]*big.Int
		Shares   []delegation.DelegatorShare
	}

	// per-delegator form: the delegate's entry carries tokens, every other
	// entry carries shares
	delegationEntry struct {
		Tokens             map[string]string `json:"tokens,omitempty"`
		Share              string            `json:"share,omitempty"`
		ShareForwarders    string            `json:"shareForwarders,omitempty"`
		ShareNonForwarders string            `json:"shareNonForwarders,omitempty"`
	}

	delegationSummary struct {
		TotalTokens             map[string]string `json:"totalTokens"`
		TotalForwardersShare    string            `json:"totalForwardersShare"`
		TotalNonForwardersShare string            `json:"totalNonForwardersShare"`
		Forwarders              map[string]string `json:"forwarders"`
		NonForwarders           map[string]string `json:"nonForwarders"`
	}
)

// WriteDelegationSplit writes the delegation split artifact in the
// per-delegator form.
func WriteDelegationSplit(path string, res *delegation.SplitResult) error {
	entries := make(map[string]json.RawMessage, len(res.Shares)+1)

	tokens := make(map[string]string, len(res.DelegateTokens))
	for token, amount := range res.DelegateTokens {
		tokens[addrKey(token)] = amount.String()
	}
	raw, err := json.Marshal(delegationEntry{Tokens: tokens})
	if err != nil {
		return errors.Wrap(err, "failed to encode delegate row")
	}
	entries[addrKey(res.Delegate)] = raw

	for _, share := range res.Shares {
		entry := delegationEntry{Share: share.Share.String()}
		if share.ShareForwarder != nil {
			entry.ShareForwarders = share.ShareForwarder.String()
		}
		if share.ShareNonForwarder != nil {
			entry.ShareNonForwarders = share.ShareNonForwarder.String()
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return errors.Wrapf(err, "failed to encode delegator %s", share.Address)
		}
		entries[addrKey(share.Address)] = raw
	}
	return writeJSON(path, entries)
}

// ReadDelegationSplit reads a delegation split artifact, accepting both the
// per-delegator form and the pre-aggregated summary form. Files produced by
// older tooling wrap either form in a single "distribution" object; the
// wrapper is unwrapped transparently.
func ReadDelegationSplit(path string) (*DelegationSplit, error) {
	var entries map[string]json.RawMessage
	if err := readJSON(path, &entries); err != nil {
		return nil, err
	}
	if wrapped, ok := entries["distribution"]; ok && len(entries) == 1 {
		entries = nil
		if err := json.Unmarshal(wrapped, &entries); err != nil {
			return nil, errors.Wrapf(ErrMalformedArtifact, "%s: %v", path, err)
		}
	}
	if _, ok := entries["totalTokens"]; ok {
		return decodeSummaryForm(entries)
	}
	return decodePerDelegatorForm(entries)
}

func decodePerDelegatorForm(entries map[string]json.RawMessage) (*DelegationSplit, error) {
	split := &DelegationSplit{Tokens: make(map[common.Address]*big.Int)}
	for key, raw := range entries {
		addr, err := parseAddr(key)
		if err != nil {
			return nil, err
		}
		var entry delegationEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrapf(ErrMalformedArtifact, "entry %s: %v", key, err)
		}
		switch {
		case entry.Tokens != nil:
			if split.Delegate != (common.Address{}) {
				return nil, errors.Wrap(ErrMalformedArtifact, "multiple delegate rows")
			}
			split.Delegate = addr
			for tokenStr, amountStr := range entry.Tokens {
				token, err := parseAddr(tokenStr)
				if err != nil {
					return nil, err
				}
				amount, err := parseAmount(amountStr)
				if err != nil {
					return nil, err
				}
				split.Tokens[token] = amount
			}
		case entry.Share != "":
			share, err := parseAmount(entry.Share)
			if err != nil {
				return nil, err
			}
			ds := delegation.DelegatorShare{Address: addr, Share: share}
			if entry.ShareForwarders != "" {
				if ds.ShareForwarder, err = parseAmount(entry.ShareForwarders); err != nil {
					return nil, err
				}
			}
			if entry.ShareNonForwarders != "" {
				if ds.ShareNonForwarder, err = parseAmount(entry.ShareNonForwarders); err != nil {
					return nil, err
				}
			}
			split.Shares = append(split.Shares, ds)
		default:
			return nil, errors.Wrapf(ErrMalformedArtifact, "entry %s has neither tokens nor share", key)
		}
	}
	if split.Delegate == (common.Address{}) {
		return nil, errors.Wrap(ErrMalformedArtifact, "no delegate row")
	}
	sortShares(split.Shares)
	return split, nil
}

func decodeSummaryForm(entries map[string]json.RawMessage) (*DelegationSplit, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	var summary delegationSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, errors.Wrapf(ErrMalformedArtifact, "summary form: %v", err)
	}
	split := &DelegationSplit{Tokens: make(map[common.Address]*big.Int, len(summary.TotalTokens))}
	for tokenStr, amountStr := range summary.TotalTokens {
		token, err := parseAddr(tokenStr)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return nil, err
		}
		split.Tokens[token] = amount
	}
	appendBucket := func(shares map[string]string, forwarder bool) error {
		for key, shareStr := range shares {
			addr, err := parseAddr(key)
			if err != nil {
				return err
			}
			share, err := parseAmount(shareStr)
			if err != nil {
				return err
			}
			ds := delegation.DelegatorShare{Address: addr, Share: share}
			if forwarder {
				ds.ShareForwarder = share
				ds.ShareNonForwarder = new(big.Int)
			} else {
				ds.ShareForwarder = new(big.Int)
				ds.ShareNonForwarder = share
			}
			split.Shares = append(split.Shares, ds)
		}
		return nil
	}
	if err := appendBucket(summary.Forwarders, true); err != nil {
		return nil, err
	}
	if err := appendBucket(summary.NonForwarders, false); err != nil {
		return nil, err
	}
	sortShares(split.Shares)
	return split, nil
}

func sortShares(shares []delegation.DelegatorShare) {
	sort.Slice(shares, func(i, j int) bool {
		return bytes.Compare(shares[i].Address[:], shares[j].Address[:]) < 0
	})
}

// Amounts computes the effective per-delegator amounts: for every token,
// amount * share / 1e18 rounded down. This is the common denominator both
// on-disk forms must agree on.
func (s *DelegationSplit) Amounts() rewards.Distribution {
	dist := make(rewards.Distribution)
	for _, share := range s.Shares {
		for token, total := range s.Tokens {
			amount := new(big.Int).Mul(total, share.Share)
			amount.Quo(amount, _shareScale)
			dist.Add(share.Address, token, amount)
		}
	}
	return dist
}
