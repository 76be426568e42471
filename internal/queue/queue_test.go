package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueue(client, RedisOptions{PollTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func TestQueues_FIFOAndDedup(t *testing.T) {
	redisQ, _ := newRedisQueue(t)
	queues := map[string]Queue{
		"redis":  redisQ,
		"memory": NewMemoryQueue(),
	}

	for name, q := range queues {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			jobs := []Job{
				{ID: "run-1", Kind: KindQueryRun, EntityID: "def-1"},
				{ID: "run-2", Kind: KindQueryRun, EntityID: "def-2"},
				{ID: "run-1", Kind: KindQueryRun, EntityID: "def-1"},
				{ID: "fetch-1", Kind: KindSourceFetch, EntityID: "src-1"},
			}
			for _, j := range jobs {
				require.NoError(t, q.Enqueue(ctx, j))
			}

			n, err := q.Len(ctx, KindQueryRun)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			first, err := q.Dequeue(ctx, KindQueryRun)
			require.NoError(t, err)
			assert.Equal(t, "run-1", first.ID)
			second, err := q.Dequeue(ctx, KindQueryRun)
			require.NoError(t, err)
			assert.Equal(t, "run-2", second.ID)
			require.NoError(t, q.Ack(ctx, first))
			require.NoError(t, q.Ack(ctx, second))

			fetch, err := q.Dequeue(ctx, KindSourceFetch)
			require.NoError(t, err)
			assert.Equal(t, "src-1", fetch.EntityID)
		})
	}
}

func TestRedisQueue_AckClearsProcessing(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{ID: "a", Kind: KindSourceFetch, EnqueuedAt: time.Now().UTC()}))
	job, err := q.Dequeue(ctx, KindSourceFetch)
	require.NoError(t, err)

	processing, err := mr.List(processingKey(KindSourceFetch))
	require.NoError(t, err)
	assert.Len(t, processing, 1)

	require.NoError(t, q.Ack(ctx, job))
	assert.False(t, mr.Exists(processingKey(KindSourceFetch)))
	assert.True(t, mr.Exists(markerKey("a")), "dedup marker outlives the ack")
}

func TestQueues_DequeueHonorsContext(t *testing.T) {
	redisQ, _ := newRedisQueue(t)
	for name, q := range map[string]Queue{"redis": redisQ, "memory": NewMemoryQueue()} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
			defer cancel()
			_, err := q.Dequeue(ctx, KindQueryRun)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestPool_DispatchesByKind(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[Kind][]string{}
	var done sync.WaitGroup
	done.Add(4)

	record := func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.Kind] = append(seen[job.Kind], job.ID)
		mu.Unlock()
		done.Done()
		return nil
	}

	pool := NewPool(q)
	pool.Register(KindQueryRun, 2, record)
	pool.Register(KindSourceFetch, 3, record)
	pool.Start(ctx)

	require.NoError(t, q.Enqueue(ctx, Job{ID: "q1", Kind: KindQueryRun}))
	require.NoError(t, q.Enqueue(ctx, Job{ID: "q2", Kind: KindQueryRun}))
	require.NoError(t, q.Enqueue(ctx, Job{ID: "f1", Kind: KindSourceFetch}))
	require.NoError(t, q.Enqueue(ctx, Job{ID: "f2", Kind: KindSourceFetch}))

	done.Wait()
	cancel()
	pool.Wait()

	assert.ElementsMatch(t, []string{"q1", "q2"}, seen[KindQueryRun])
	assert.ElementsMatch(t, []string{"f1", "f2"}, seen[KindSourceFetch])
}

func TestPool_LimitsConcurrencyPerKind(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, peak int32
	var done sync.WaitGroup
	done.Add(6)

	pool := NewPool(q)
	pool.Register(KindQueryRun, 2, func(ctx context.Context, job Job) error {
		defer done.Done()
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	})
	pool.Start(ctx)

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, q.Enqueue(ctx, Job{ID: id, Kind: KindQueryRun}))
	}
	done.Wait()
	cancel()
	pool.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_RecoversFromPanics(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	var done sync.WaitGroup
	done.Add(2)
	pool := NewPool(q)
	pool.Register(KindSourceFetch, 1, func(ctx context.Context, job Job) error {
		defer done.Done()
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		return nil
	})
	pool.Start(ctx)

	require.NoError(t, q.Enqueue(ctx, Job{ID: "1", Kind: KindSourceFetch}))
	require.NoError(t, q.Enqueue(ctx, Job{ID: "2", Kind: KindSourceFetch}))
	done.Wait()
	cancel()
	pool.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
