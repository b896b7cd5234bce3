// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package delegateindex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/pkg/lifecycle"
	"github.com/stakemesh/voterewards/pkg/util/fileutil"
)

// EventLog is the append-only store of delegation events for one
// (chain, registry) pair. Writers are single per pair; concurrent indexer
// runs for the same pair must be serialized by the caller.
type EventLog interface {
	lifecycle.StartStopper

	// Append appends events and advances the EndBlock watermark. The two are
	// persisted together so readers never see events past a stale watermark.
	Append(events []Event, endBlock uint64) error
	// Events returns all stored events in append order, watermark excluded.
	Events() ([]Event, error)
	// EndBlock returns the last indexed block, and false if nothing has been
	// indexed yet.
	EndBlock() (uint64, bool, error)
}

const (
	_recordKindEvent    = ""
	_recordKindEndBlock = "endblock"
)

// fileRecord is one JSONL line of the file backend. The EndBlock watermark is
// a synthetic record with kind "endblock"; it is not a delegation event and is
// stripped before replay.
type fileRecord struct {
	Kind      string `json:"kind,omitempty"`
	Delegator string `json:"delegator,omitempty"`
	Delegate  string `json:"delegate,omitempty"`
	Event     string `json:"event,omitempty"`
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// fileEventLog stores events as JSON lines with the EndBlock marker as the
// last line. Every append rewrites the file to a temp path and renames it into
// place, so a crashed run never leaves a log with a missing or stale marker.
type fileEventLog struct {
	mu       sync.Mutex
	path     string
	events   []Event
	endBlock uint64
	indexed  bool
}

// NewFileEventLog creates a file backed event log at path.
func NewFileEventLog(path string) EventLog {
	return &fileEventLog{path: path}
}

// Start loads the existing log file, if any.
func (l *fileEventLog) Start(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !fileutil.FileExists(l.path) {
		return nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return errors.Wrapf(err, "failed to open event log %s", l.path)
	}
	defer f.Close()

	l.events = nil
	l.indexed = false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return errors.Wrapf(err, "failed to parse event log line in %s", l.path)
		}
		if rec.Kind == _recordKindEndBlock {
			l.endBlock = rec.Block
			l.indexed = true
			continue
		}
		kind, err := ParseEventKind(rec.Event)
		if err != nil {
			return err
		}
		l.events = append(l.events, Event{
			Delegator:   common.HexToAddress(rec.Delegator),
			Delegate:    common.HexToAddress(rec.Delegate),
			Kind:        kind,
			BlockNumber: rec.Block,
			Timestamp:   rec.Timestamp,
		})
	}
	return errors.Wrapf(scanner.Err(), "failed to read event log %s", l.path)
}

func (l *fileEventLog) Stop(_ context.Context) error { return nil }

// Append appends events, advances the watermark and rewrites the file.
func (l *fileEventLog) Append(events []Event, endBlock uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := append(l.events, events...)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range merged {
		rec := fileRecord{
			Delegator: ev.Delegator.Hex(),
			Delegate:  ev.Delegate.Hex(),
			Event:     ev.Kind.String(),
			Block:     ev.BlockNumber,
			Timestamp: ev.Timestamp,
		}
		if err := enc.Encode(&rec); err != nil {
			return errors.Wrap(err, "failed to encode event record")
		}
	}
	if err := enc.Encode(&fileRecord{Kind: _recordKindEndBlock, Block: endBlock}); err != nil {
		return errors.Wrap(err, "failed to encode endblock record")
	}
	if err := fileutil.AtomicWriteFile(l.path, buf.Bytes()); err != nil {
		return err
	}
	l.events = merged
	l.endBlock = endBlock
	l.indexed = true
	return nil
}

// Events returns the stored events, watermark excluded.
func (l *fileEventLog) Events() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out, nil
}

// EndBlock returns the watermark.
func (l *fileEventLog) EndBlock() (uint64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endBlock, l.indexed, nil
}
