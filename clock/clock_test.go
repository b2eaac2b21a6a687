package clock

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualSetAndAdvance(t *testing.T) {
	c := NewManual(10)
	assert.Equal(t, uint64(10), c.CurrentBlock())

	require.NoError(t, c.Set(10))
	require.NoError(t, c.Set(15))

	block, err := c.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block)

	err = c.Set(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidClockUpdate)
	assert.Equal(t, uint64(16), c.CurrentBlock())
}

func TestManualAdvanceNeverWraps(t *testing.T) {
	c := NewManual(100)

	block, err := c.Advance(math.MaxUint64)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidClockUpdate)
	assert.Equal(t, uint64(100), block)
	assert.Equal(t, uint64(100), c.CurrentBlock())

	block, err = c.Advance(math.MaxUint64 - 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), block)

	_, err = c.Advance(1)
	require.Error(t, err)
	assert.Equal(t, uint64(math.MaxUint64), c.CurrentBlock())
}

func TestManualConcurrentAdvance(t *testing.T) {
	c := NewManual(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			_, _ = c.Advance(2)
		}()
	}

	wg.Wait()
	assert.Equal(t, uint64(100), c.CurrentBlock())
}

func TestIntervalTicks(t *testing.T) {
	c := NewInterval(ulogger.TestLogger{}, 5, 5*time.Millisecond)
	require.NoError(t, c.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	readyCh := make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx, readyCh) }()

	<-readyCh
	require.Eventually(t, func() bool { return c.CurrentBlock() >= 7 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestIntervalRejectsZeroInterval(t *testing.T) {
	c := NewInterval(ulogger.TestLogger{}, 0, 0)
	assert.ErrorIs(t, c.Init(context.Background()), errors.ErrConfiguration)
}
