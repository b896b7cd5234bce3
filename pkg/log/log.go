// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package log provides the global loggers used across the engine. It wraps
// zap so that callers only need to import this package and go.uber.org/zap.
package log

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap                *zap.Config `json:"zap" yaml:"zap"`
	StderrRedirectFile *string     `json:"stderrRedirectFile" yaml:"stderrRedirectFile"`
	RedirectStdLog     bool        `json:"stdLogRedirect" yaml:"stdLogRedirect"`
}

var (
	_globalMu sync.RWMutex
	_logger   = zap.NewNop()
)

// L wraps the global logger.
func L() *zap.Logger {
	_globalMu.RLock()
	defer _globalMu.RUnlock()
	return _logger
}

// InitLoggers initializes the global logger from the given config.
func InitLoggers(cfg GlobalConfig) error {
	zapCfg := zap.NewProductionConfig()
	if cfg.Zap != nil {
		zapCfg = *cfg.Zap
	} else {
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if cfg.StderrRedirectFile != nil {
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, *cfg.StderrRedirectFile)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return errors.Wrap(err, "failed to build zap logger")
	}
	_globalMu.Lock()
	defer _globalMu.Unlock()
	_logger = logger
	if cfg.RedirectStdLog {
		zap.RedirectStdLog(logger)
	}
	return nil
}
