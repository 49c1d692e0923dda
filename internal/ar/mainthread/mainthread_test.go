package mainthread

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineRunsImmediately(t *testing.T) {
	ran := false
	assert.True(t, Inline{}.Post(func() { ran = true }))
	assert.True(t, ran)
}

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue("main", 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		require.True(t, q.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.True(t, q.Sync(ctx))

	mu.Lock()
	assert.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not stop")
	}

	assert.False(t, q.Post(func() {}), "stopped queue rejects work")
	executed, rejected := q.Stats()
	assert.Equal(t, uint64(21), executed)
	assert.Equal(t, uint64(1), rejected)
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(0)
	assert.Equal(t, "worker", w.Name())
	assert.Equal(t, 1, cap(w.ch))
}
