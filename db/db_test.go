// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/voterewards/pkg/util/byteutil"
)

func TestKVStorePutGet(t *testing.T) {
	testFn := func(kv KVStore, t *testing.T) {
		r := require.New(t)
		ctx := context.Background()
		r.NoError(kv.Start(ctx))
		defer func() {
			r.NoError(kv.Stop(ctx))
		}()

		_, err := kv.Get("ns", []byte("missing"))
		r.Error(err)

		r.NoError(kv.Put("ns", []byte("key"), []byte("value")))
		v, err := kv.Get("ns", []byte("key"))
		r.NoError(err)
		r.Equal([]byte("value"), v)

		// another namespace does not see the key
		_, err = kv.Get("other", []byte("key"))
		r.Error(err)

		r.NoError(kv.Delete("ns", []byte("key")))
		_, err = kv.Get("ns", []byte("key"))
		r.True(errors.Cause(err) == ErrNotExist)
	}

	t.Run("mem", func(t *testing.T) {
		testFn(NewMemKVStore(), t)
	})
	t.Run("bolt", func(t *testing.T) {
		cfg := DefaultConfig
		cfg.DbPath = filepath.Join(t.TempDir(), "test.db")
		testFn(NewBoltDB(cfg), t)
	})
}

func TestKVStoreForEachOrder(t *testing.T) {
	testFn := func(kv KVStore, t *testing.T) {
		r := require.New(t)
		ctx := context.Background()
		r.NoError(kv.Start(ctx))
		defer func() {
			r.NoError(kv.Stop(ctx))
		}()

		// insert out of order, expect ascending key iteration
		for _, seq := range []uint64{3, 1, 256, 2, 255} {
			r.NoError(kv.Put("events", byteutil.Uint64ToBytesBigEndian(seq), []byte{byte(seq)}))
		}
		var got []uint64
		r.NoError(kv.ForEach("events", func(k, _ []byte) error {
			got = append(got, byteutil.BytesToUint64BigEndian(k))
			return nil
		}))
		r.Equal([]uint64{1, 2, 3, 255, 256}, got)

		// unknown namespace iterates nothing
		r.NoError(kv.ForEach("unknown", func(_, _ []byte) error {
			t.Fatal("should not be called")
			return nil
		}))
	}

	t.Run("mem", func(t *testing.T) {
		testFn(NewMemKVStore(), t)
	})
	t.Run("bolt", func(t *testing.T) {
		cfg := DefaultConfig
		cfg.DbPath = filepath.Join(t.TempDir(), "test.db")
		testFn(NewBoltDB(cfg), t)
	})
}

func TestBoltDBReopen(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	cfg := DefaultConfig
	cfg.DbPath = filepath.Join(t.TempDir(), "test.db")
	kv := NewBoltDB(cfg)
	r.NoError(kv.Start(ctx))
	r.NoError(kv.Put("ns", []byte("key"), []byte("value")))
	r.NoError(kv.Stop(ctx))

	kv = NewBoltDB(cfg)
	r.NoError(kv.Start(ctx))
	defer func() {
		r.NoError(kv.Stop(ctx))
	}()
	v, err := kv.Get("ns", []byte("key"))
	r.NoError(err)
	r.Equal([]byte("value"), v)
}
