// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package delegateindex

import (
	"context"

	"github.com/cenkalti/backoff"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/stakemesh/voterewards/pkg/lifecycle"
	"github.com/stakemesh/voterewards/pkg/log"
)

var (
	// ErrRangeTooLarge indicates the provider rejected a block range because
	// the response would be too large; the indexer shrinks the batch and
	// retries the same range.
	ErrRangeTooLarge = errors.New("block range response too large")
	// ErrTransient indicates a recoverable provider failure (rate limit, 5xx,
	// network); the indexer backs off and retries the same range.
	ErrTransient = errors.New("transient provider error")

	_indexerMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voterewards_delegation_indexer_metrics",
		Help: "delegation indexer metrics.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(_indexerMtc)
}

type (
	// EventSource fetches delegation events from the registry contract.
	EventSource interface {
		// HeadBlock returns the current chain head.
		HeadBlock(ctx context.Context) (uint64, error)
		// FetchRange returns the registry's delegation events in
		// [from, to], in block order with timestamps filled in.
		FetchRange(ctx context.Context, from, to uint64) ([]Event, error)
	}

	// Config is the indexer config.
	Config struct {
		// StartBlock is the registry contract's deployment block, the lower
		// bound of the first run.
		StartBlock uint64 `yaml:"startBlock"`
		// BatchSize is the initial block range size per fetch.
		BatchSize uint64 `yaml:"batchSize"`
		// MaxRetries bounds backoff retries per range before the run fails.
		MaxRetries uint64 `yaml:"maxRetries"`
	}

	// Indexer incrementally fetches delegation events and appends them to the
	// event log with a resumable EndBlock watermark. It is never "done": every
	// run continues from the previous watermark.
	Indexer struct {
		source EventSource
		eLog   EventLog
		cfg    Config
		ready  lifecycle.Readiness
	}
)

// DefaultConfig is the default indexer config.
var DefaultConfig = Config{
	BatchSize:  10000,
	MaxRetries: 5,
}

// NewIndexer creates an indexer over the given source and event log.
func NewIndexer(source EventSource, eLog EventLog, cfg Config) *Indexer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	return &Indexer{
		source: source,
		eLog:   eLog,
		cfg:    cfg,
	}
}

// Start starts the underlying event log.
func (idx *Indexer) Start(ctx context.Context) error {
	if err := idx.eLog.Start(ctx); err != nil {
		return err
	}
	return idx.ready.TurnOn()
}

// Stop stops the underlying event log.
func (idx *Indexer) Stop(ctx context.Context) error {
	if err := idx.ready.TurnOff(); err != nil {
		return err
	}
	return idx.eLog.Stop(ctx)
}

// Index fetches all events from the watermark (or the registry's deploy block
// on the first run) up to the chain head and appends them to the log. The
// watermark advances batch by batch, so an interrupted run resumes where it
// stopped.
func (idx *Indexer) Index(ctx context.Context) error {
	if !idx.ready.IsReady() {
		return lifecycle.ErrWrongState
	}
	head, err := idx.source.HeadBlock(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get chain head")
	}
	from := idx.cfg.StartBlock
	if watermark, indexed, err := idx.eLog.EndBlock(); err != nil {
		return err
	} else if indexed {
		from = watermark + 1
	}
	if from > head {
		return nil
	}

	batch := idx.cfg.BatchSize
	for cur := from; cur <= head; {
		to := cur + batch - 1
		if to > head {
			to = head
		}
		events, err := idx.fetchRange(ctx, cur, to)
		switch {
		case err == nil:
			if err := idx.eLog.Append(events, to); err != nil {
				return err
			}
			_indexerMtc.WithLabelValues("events").Add(float64(len(events)))
			log.L().Debug("indexed delegation events",
				zap.Uint64("from", cur), zap.Uint64("to", to), zap.Int("events", len(events)))
			cur = to + 1
		case errors.Is(err, ErrRangeTooLarge) && batch > 1:
			// retry the same range with a smaller batch
			batch /= 10
			if batch == 0 {
				batch = 1
			}
			_indexerMtc.WithLabelValues("batch_shrink").Inc()
			log.L().Info("provider response too large, shrinking batch",
				zap.Uint64("from", cur), zap.Uint64("batch", batch))
		default:
			return errors.Wrapf(err, "failed to index range [%d, %d]", cur, to)
		}
	}
	return nil
}

// fetchRange fetches one range, backing off and retrying the same range on
// transient provider errors. Oversized-range errors surface to the caller.
func (idx *Indexer) fetchRange(ctx context.Context, from, to uint64) ([]Event, error) {
	var events []Event
	operation := func() error {
		var err error
		events, err = idx.source.FetchRange(ctx, from, to)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrTransient):
			_indexerMtc.WithLabelValues("transient_retry").Inc()
			log.L().Warn("transient provider error, backing off",
				zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), idx.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ReconstructAt replays the cached log and returns the delegators whose last
// event at or before atBlock designates target.
func (idx *Indexer) ReconstructAt(target common.Address, atBlock uint64) ([]common.Address, error) {
	events, err := idx.eLog.Events()
	if err != nil {
		return nil, err
	}
	return Replay(events, target, atBlock), nil
}

// EndBlock exposes the log's watermark.
func (idx *Indexer) EndBlock() (uint64, bool, error) {
	return idx.eLog.EndBlock()
}
