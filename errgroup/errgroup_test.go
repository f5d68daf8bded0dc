package errgroup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_AllSucceed(t *testing.T) {
	grp, _ := WithContext(context.Background())

	var count atomic.Int32

	for i := 0; i < 5; i++ {
		grp.Go(func() error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, grp.Wait())
	assert.EqualValues(t, 5, count.Load())
}

func TestGroup_FirstErrorWinsAndCancels(t *testing.T) {
	grp, ctx := WithContext(context.Background())

	boom := errors.New("boom")

	grp.Go(func() error {
		return boom
	})

	grp.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("context was never canceled")
		}
	})

	assert.ErrorIs(t, grp.Wait(), boom)
}

func TestGroup_PanicBecomesError(t *testing.T) {
	grp, _ := WithContext(context.Background())
	grp.SetLogger(log.NewNop())

	grp.Go(func() error {
		panic("probe exploded")
	})

	err := grp.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanicRecovered)
	assert.Contains(t, err.Error(), "probe exploded")
}

func TestGroup_ZeroValueUsable(t *testing.T) {
	var grp Group

	grp.Go(func() error { return nil })

	assert.NoError(t, grp.Wait())
}

func TestGroup_NilReceiverSetLogger(t *testing.T) {
	var grp *Group

	// Must not panic.
	grp.SetLogger(log.NewNop())
}
