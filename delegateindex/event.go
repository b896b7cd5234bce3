// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package delegateindex incrementally indexes delegate-changed events from a
// registry contract and reconstructs delegator sets at historical blocks.
package delegateindex

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// EventKind is the kind of a delegation event.
type EventKind uint8

const (
	// EventKindSet records a delegator designating a delegate.
	EventKindSet EventKind = iota + 1
	// EventKindClear records a delegator clearing its delegation.
	EventKindClear
)

// ErrUnknownEventKind indicates an event record with an unrecognized kind.
var ErrUnknownEventKind = errors.New("unknown delegation event kind")

// Event is one delegate-changed registry event. The log of events is
// append-only; an event is never mutated once written.
type Event struct {
	Delegator   common.Address
	Delegate    common.Address
	Kind        EventKind
	BlockNumber uint64
	Timestamp   int64
}

// String returns the wire name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventKindSet:
		return "set"
	case EventKindClear:
		return "clear"
	default:
		return "unknown"
	}
}

// ParseEventKind parses the wire name of a kind.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "set":
		return EventKindSet, nil
	case "clear":
		return EventKindClear, nil
	default:
		return 0, errors.Wrapf(ErrUnknownEventKind, "%q", s)
	}
}

// Replay filters events at or before atBlock, sorts them by block number
// ascending (stable, so intra-block order is the append order), and replays
// them with last-event-wins semantics per delegator. It returns the
// delegators whose final delegate equals target, in ascending address order.
func Replay(events []Event, target common.Address, atBlock uint64) []common.Address {
	filtered := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.BlockNumber <= atBlock {
			filtered = append(filtered, ev)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].BlockNumber < filtered[j].BlockNumber
	})

	current := make(map[common.Address]common.Address, len(filtered))
	for _, ev := range filtered {
		switch ev.Kind {
		case EventKindSet:
			current[ev.Delegator] = ev.Delegate
		case EventKindClear:
			delete(current, ev.Delegator)
		}
	}

	var delegators []common.Address
	for delegator, delegate := range current {
		if delegate == target {
			delegators = append(delegators, delegator)
		}
	}
	sort.Slice(delegators, func(i, j int) bool {
		return delegators[i].Hex() < delegators[j].Hex()
	})
	return delegators
}
