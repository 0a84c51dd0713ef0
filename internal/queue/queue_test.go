package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsTasksSerially(t *testing.T) {
	q := New(8)
	defer q.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	running := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			err := q.Do(ctx, func(context.Context) error {
				mu.Lock()
				running++
				assert.Equal(t, 1, running, "tasks must not overlap")
				order = append(order, i)
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, order, 5)
}

func TestDoReturnsTaskError(t *testing.T) {
	q := New(1)
	defer q.Close()

	want := errors.New("boom")
	err := q.Do(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestDoRespectsCancelledContext(t *testing.T) {
	q := New(1)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Do(ctx, func(context.Context) error {
		t.Fatal("task should not run with a cancelled context")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDoAfterClose(t *testing.T) {
	q := New(1)
	q.Close()

	err := q.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
