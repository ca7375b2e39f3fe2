package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewKey(t *testing.T) {
	a := NewKey("layer", "data/apcac.gpkg", "apcac_nunivotto3")
	b := NewKey("layer", "data/apcac.gpkg", "apcac_nunivotto3")
	c := NewKey("layer", "data/apcac.gpkg", "apcac_nunivotto4")
	d := NewKey("style", "data/apcac.gpkg", "apcac_nunivotto3")
	e := NewKey("layer", "data/apcac.gpkgapcac_", "nunivotto3")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.NotEqual(t, a, e)
	assert.Contains(t, string(a), "layer:")
	assert.NotEqual(t, NewKey("map", 0.001), NewKey("map", 0.002))
}

func TestDoComputesOnce(t *testing.T) {
	c := New[int]()
	key := NewKey("answer")
	var calls int

	for i := 0; i < 3; i++ {
		v, err := c.Do(context.Background(), key, func(context.Context) (int, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}

	assert.Equal(t, 1, calls)
	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestDoDoesNotCacheErrors(t *testing.T) {
	c := New[string]()
	key := NewKey("flaky")
	boom := errors.New("boom")
	var calls int

	_, err := c.Do(context.Background(), key, func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.Do(context.Background(), key, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestDoConcurrentSingleComputation(t *testing.T) {
	c := New[[]string]()
	key := NewKey("layers", "apcac.gpkg")
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([][]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Do(context.Background(), key, func(context.Context) ([]string, error) {
				calls.Add(1)
				<-release
				return []string{"apcac_nunivotto3"}, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"apcac_nunivotto3"}, r)
	}
}

func TestDoCancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New[string]()
	key := NewKey("map", "apcac_nunivotto3", 0.001)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	render := func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "rendered", nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Do(ctxA, key, render)
		errA <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.Do(context.Background(), key, render)
		resB <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "rendered", b.v)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestWithLimitEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](WithLimit(2))
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestSetOverwrites(t *testing.T) {
	c := New[int]()
	c.Set("a", 1)
	c.Set("a", 2)
	v, _ := c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

type memStore struct {
	mu   sync.Mutex
	data map[Key][]byte
	gets int
}

func (m *memStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type payload struct {
	Layer string  `json:"layer"`
	Zoom  float64 `json:"zoom"`
}

func TestTieredUsesSecondLevel(t *testing.T) {
	store := &memStore{data: map[Key][]byte{}}
	key := NewKey("map", "apcac_nunivotto3")
	var calls int
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Layer: "apcac_nunivotto3", Zoom: 7}, nil
	}

	// First instance computes and publishes.
	v, err := New[payload]().Do(context.Background(), key, Tiered(store, key, zap.NewNop(), compute))
	require.NoError(t, err)
	assert.Equal(t, "apcac_nunivotto3", v.Layer)

	// A second instance with an empty memory cache reads it back.
	v, err = New[payload]().Do(context.Background(), key, Tiered(store, key, zap.NewNop(), compute))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v.Zoom)
	assert.Equal(t, 1, calls)
}

func TestTieredDiscardsCorruptEntries(t *testing.T) {
	key := NewKey("map", "x")
	store := &memStore{data: map[Key][]byte{key: []byte("{not json")}}

	v, err := Tiered(store, key, zap.NewNop(), func(context.Context) (payload, error) {
		return payload{Layer: "fresh"}, nil
	})(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", v.Layer)

	var stored payload
	require.NoError(t, json.Unmarshal(store.data[key], &stored))
	assert.Equal(t, "fresh", stored.Layer)
}

func TestTieredNilStore(t *testing.T) {
	fn := func(context.Context) (int, error) { return 1, nil }
	v, err := Tiered[int](nil, "k", zap.NewNop(), fn)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
