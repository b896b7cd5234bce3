// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "exists")
	r.False(FileExists(path))
	r.NoError(os.WriteFile(path, []byte("x"), 0600))
	r.True(FileExists(path))
	r.True(FileExists(dir))
}

func TestAtomicWriteFile(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "sub", "data.json")
	r.NoError(AtomicWriteFile(path, []byte("first")))
	b, err := os.ReadFile(path)
	r.NoError(err)
	r.Equal("first", string(b))

	// overwrite leaves no temp files behind
	r.NoError(AtomicWriteFile(path, []byte("second")))
	b, err = os.ReadFile(path)
	r.NoError(err)
	r.Equal("second", string(b))
	entries, err := os.ReadDir(filepath.Dir(path))
	r.NoError(err)
	r.Len(entries, 1)
}
