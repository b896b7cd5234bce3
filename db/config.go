// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

// Config is the config for the KV store.
type Config struct {
	// DbPath is the file path of the bolt database
	DbPath string `yaml:"dbPath"`
	// NumRetries is the number of retries for a failed bolt transaction
	NumRetries uint8 `yaml:"numRetries"`
}

// DefaultConfig returns the default config.
var DefaultConfig = Config{
	DbPath:     "delegation-events.db",
	NumRetries: 3,
}
