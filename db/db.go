// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package db provides the KV store backing the delegation event log.
package db

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/stakemesh/voterewards/pkg/lifecycle"
)

var (
	// ErrBucketNotExist indicates certain bucket does not exist in db
	ErrBucketNotExist = errors.New("bucket not exist in DB")
	// ErrNotExist indicates certain item does not exist in db
	ErrNotExist = errors.New("not exist in DB")
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
)

// KVStore is the interface of KV store.
type KVStore interface {
	lifecycle.StartStopper

	// Put inserts or updates a record identified by (namespace, key)
	Put(string, []byte, []byte) error
	// Get gets a record by (namespace, key)
	Get(string, []byte) ([]byte, error)
	// Delete deletes a record by (namespace, key)
	Delete(string, []byte) error
	// ForEach iterates the records in a namespace in ascending key order
	ForEach(string, func(key, value []byte) error) error
}

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemKVStore instantiates an in-memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{
		data: make(map[string]map[string][]byte),
	}
}

func (m *memKVStore) Start(_ context.Context) error { return nil }

func (m *memKVStore) Stop(_ context.Context) error { return nil }

// Put inserts a <key, value> record
func (m *memKVStore) Put(namespace string, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	v := make([]byte, len(value))
	copy(v, value)
	ns[string(key)] = v
	return nil
}

// Get retrieves a record
func (m *memKVStore) Get(namespace string, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.data[namespace]
	if !ok {
		return nil, errors.Wrapf(ErrBucketNotExist, "namespace = %s", namespace)
	}
	v, ok := ns[string(key)]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "key = %x", key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Delete deletes a record
func (m *memKVStore) Delete(namespace string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok := m.data[namespace]; ok {
		delete(ns, string(key))
	}
	return nil
}

// ForEach iterates the records in a namespace in ascending key order
func (m *memKVStore) ForEach(namespace string, cb func(key, value []byte) error) error {
	m.mu.RLock()
	ns, ok := m.data[namespace]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	values := make(map[string][]byte, len(ns))
	for k, v := range ns {
		values[k] = v
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := cb([]byte(k), values[k]); err != nil {
			return err
		}
	}
	return nil
}
