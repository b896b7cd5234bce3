// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package lifecycle defines the start/stop protocol shared by stores and
// long-lived components.
package lifecycle

import "context"

type (
	// Starter is a component that needs to be started before use.
	Starter interface {
		Start(context.Context) error
	}

	// Stopper is a component that needs to be stopped to release resources.
	Stopper interface {
		Stop(context.Context) error
	}

	// StartStopper is both a Starter and a Stopper.
	StartStopper interface {
		Starter
		Stopper
	}
)

// Lifecycle manages a list of components' lifecycle.
type Lifecycle struct {
	models []interface{}
}

// Add adds models to the lifecycle.
func (lc *Lifecycle) Add(m ...interface{}) { lc.models = append(lc.models, m...) }

// OnStart runs models' Start function if it implements Starter. It exits on
// the first error.
func (lc *Lifecycle) OnStart(ctx context.Context) error {
	for _, m := range lc.models {
		if starter, ok := m.(Starter); ok {
			if err := starter.Start(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnStop runs models' Stop function if it implements Stopper, in reverse
// order of registration. It exits on the first error.
func (lc *Lifecycle) OnStop(ctx context.Context) error {
	for i := len(lc.models) - 1; i >= 0; i-- {
		if stopper, ok := lc.models[i].(Stopper); ok {
			if err := stopper.Stop(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
