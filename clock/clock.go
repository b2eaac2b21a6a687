// Package clock provides the logical block clock reservations expire against. It only ever moves forward.
package clock

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/ulogger"
)

type Clock interface {
	CurrentBlock() uint64
}

// Manual is advanced by its owner, e.g. tests or an external block feed.
type Manual struct {
	block atomic.Uint64
}

func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.block.Store(start)

	return m
}

func (m *Manual) CurrentBlock() uint64 {
	return m.block.Load()
}

// Set moves the clock to block. Moving backwards is rejected.
func (m *Manual) Set(block uint64) error {
	for {
		current := m.block.Load()
		if block < current {
			return errors.NewInvalidClockUpdateError("cannot move clock from block %d back to %d", current, block)
		}

		if m.block.CompareAndSwap(current, block) {
			return nil
		}
	}
}

// Advance adds n blocks and returns the new value. An advance past the largest block number is rejected.
func (m *Manual) Advance(n uint64) (uint64, error) {
	for {
		current := m.block.Load()
		if n > math.MaxUint64-current {
			return current, errors.NewInvalidClockUpdateError("cannot advance clock at block %d by %d blocks", current, n)
		}

		if m.block.CompareAndSwap(current, current+n) {
			return current + n, nil
		}
	}
}

// Interval ticks one block per interval while it runs as a service.
type Interval struct {
	*Manual
	logger   ulogger.Logger
	interval time.Duration
	stopped  chan struct{}
}

func NewInterval(logger ulogger.Logger, start uint64, interval time.Duration) *Interval {
	return &Interval{
		Manual:   NewManual(start),
		logger:   logger,
		interval: interval,
		stopped:  make(chan struct{}),
	}
}

func (i *Interval) Health(_ context.Context, _ bool) (int, string, error) {
	return 200, "OK", nil
}

func (i *Interval) Init(_ context.Context) error {
	if i.interval <= 0 {
		return errors.NewConfigurationError("[Clock] block interval must be positive, got %s", i.interval)
	}

	return nil
}

func (i *Interval) Start(ctx context.Context, readyCh chan<- struct{}) error {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()
	defer close(i.stopped)

	i.logger.Infof("[Clock] ticking every %s from block %d", i.interval, i.CurrentBlock())
	close(readyCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			block, err := i.Advance(1)
			if err != nil {
				return err
			}

			i.logger.Debugf("[Clock] block %d", block)
		}
	}
}

func (i *Interval) Stop(_ context.Context) error {
	return nil
}
