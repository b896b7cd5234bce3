// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package delegateindex

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/db"
	"github.com/stakemesh/voterewards/pkg/util/byteutil"
)

const (
	_eventsNS = "delegationEvents"
	_metaNS   = "delegationMeta"
)

var (
	_endBlockKey = []byte("endBlock")
	_nextSeqKey  = []byte("nextSeq")
)

// kvEventLog stores events in a KVStore under big-endian sequence keys, with
// the EndBlock watermark in a separate meta namespace so it never mixes with
// real events.
type kvEventLog struct {
	kv db.KVStore

	nextSeq  uint64
	endBlock uint64
	indexed  bool
}

// NewKVEventLog creates an event log on top of a KVStore (typically bolt).
func NewKVEventLog(kv db.KVStore) EventLog {
	return &kvEventLog{kv: kv}
}

// Start opens the store and loads the watermark and sequence counter.
func (l *kvEventLog) Start(ctx context.Context) error {
	if err := l.kv.Start(ctx); err != nil {
		return err
	}
	if v, err := l.kv.Get(_metaNS, _endBlockKey); err == nil {
		l.endBlock = byteutil.BytesToUint64BigEndian(v)
		l.indexed = true
	} else if errors.Cause(err) != db.ErrNotExist && errors.Cause(err) != db.ErrBucketNotExist {
		return err
	}
	if v, err := l.kv.Get(_metaNS, _nextSeqKey); err == nil {
		l.nextSeq = byteutil.BytesToUint64BigEndian(v)
	} else if errors.Cause(err) != db.ErrNotExist && errors.Cause(err) != db.ErrBucketNotExist {
		return err
	}
	return nil
}

func (l *kvEventLog) Stop(ctx context.Context) error {
	return l.kv.Stop(ctx)
}

// Append appends events under increasing sequence keys and advances the
// watermark last, so a partially written batch is re-fetched on resume rather
// than skipped.
func (l *kvEventLog) Append(events []Event, endBlock uint64) error {
	seq := l.nextSeq
	for _, ev := range events {
		rec := fileRecord{
			Delegator: ev.Delegator.Hex(),
			Delegate:  ev.Delegate.Hex(),
			Event:     ev.Kind.String(),
			Block:     ev.BlockNumber,
			Timestamp: ev.Timestamp,
		}
		data := byteutil.Must(json.Marshal(&rec))
		if err := l.kv.Put(_eventsNS, byteutil.Uint64ToBytesBigEndian(seq), data); err != nil {
			return err
		}
		seq++
	}
	if err := l.kv.Put(_metaNS, _nextSeqKey, byteutil.Uint64ToBytesBigEndian(seq)); err != nil {
		return err
	}
	if err := l.kv.Put(_metaNS, _endBlockKey, byteutil.Uint64ToBytesBigEndian(endBlock)); err != nil {
		return err
	}
	l.nextSeq = seq
	l.endBlock = endBlock
	l.indexed = true
	return nil
}

// Events returns the stored events in sequence order.
func (l *kvEventLog) Events() ([]Event, error) {
	var events []Event
	err := l.kv.ForEach(_eventsNS, func(_, value []byte) error {
		var rec fileRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return errors.Wrap(err, "failed to parse event record")
		}
		kind, err := ParseEventKind(rec.Event)
		if err != nil {
			return err
		}
		events = append(events, Event{
			Delegator:   common.HexToAddress(rec.Delegator),
			Delegate:    common.HexToAddress(rec.Delegate),
			Kind:        kind,
			BlockNumber: rec.Block,
			Timestamp:   rec.Timestamp,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// EndBlock returns the watermark.
func (l *kvEventLog) EndBlock() (uint64, bool, error) {
	return l.endBlock, l.indexed, nil
}
