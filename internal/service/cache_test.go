package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/internal/model"
)

// memoryCache keeps the newest version of each journey, like the Redis client
type memoryCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	versions map[string]int
	deletes  int
	setErr   error

	beforeSet func(*model.TruckJourney)
	afterSet  func(*model.TruckJourney)
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries:  make(map[string][]byte),
		versions: make(map[string]int),
	}
}

func (c *memoryCache) GetJourney(_ context.Context, id string) (*model.TruckJourney, error) {
	c.mu.Lock()
	data, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, redis.Nil
	}
	var journey model.TruckJourney
	if err := json.Unmarshal(data, &journey); err != nil {
		return nil, err
	}
	return &journey, nil
}

func (c *memoryCache) SetJourney(_ context.Context, journey *model.TruckJourney) error {
	if c.beforeSet != nil {
		c.beforeSet(journey)
	}

	c.mu.Lock()
	if c.setErr != nil {
		c.mu.Unlock()
		return c.setErr
	}
	if current, ok := c.versions[journey.UUID]; !ok || journey.Version > current {
		data, err := json.Marshal(journey)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.entries[journey.UUID] = data
		c.versions[journey.UUID] = journey.Version
	}
	c.mu.Unlock()

	if c.afterSet != nil {
		c.afterSet(journey)
	}
	return nil
}

func (c *memoryCache) DeleteJourney(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	delete(c.versions, id)
	c.deletes++
	return nil
}

func (c *memoryCache) failSets(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErr = err
}

func TestSlowCacheRefreshDoesNotHideNewerCommit(t *testing.T) {
	mc := newMemoryCache()
	f := newFixtureWithCache(t, yardConfig(), mc)
	ctx := context.Background()
	j := f.insideJourney(t, "WeighBridge")

	// the refresh for the first reading stalls until the second reading's
	// refresh has landed
	newer := make(chan struct{})
	var once sync.Once
	mc.beforeSet = func(journey *model.TruckJourney) {
		if len(journey.WeightData.Readings) == 1 {
			select {
			case <-newer:
			case <-time.After(2 * time.Second):
			}
		}
	}
	mc.afterSet = func(journey *model.TruckJourney) {
		if len(journey.WeightData.Readings) == 2 {
			once.Do(func() { close(newer) })
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, kg := range []float64{1000, 1010} {
		wg.Add(1)
		go func(kg float64) {
			defer wg.Done()
			_, err := f.svc.AppendReading(ctx, j.UUID, &WeightReadingRequest{WeightKg: kg}, operator)
			errs <- err
		}(kg)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.repo.GetByID(ctx, j.UUID)
	require.NoError(t, err)
	got, err := f.svc.GetJourney(ctx, j.UUID)
	require.NoError(t, err)
	assert.Equal(t, stored.Version, got.Version)
	assert.Len(t, got.WeightData.Readings, 2)
}

func TestFailedCacheRefreshEvictsPreviousVersion(t *testing.T) {
	mc := newMemoryCache()
	f := newFixtureWithCache(t, yardConfig(), mc)
	ctx := context.Background()
	j := f.insideJourney(t, "InternalParking")

	cached, err := f.svc.GetJourney(ctx, j.UUID)
	require.NoError(t, err)
	require.Equal(t, model.StatusInside, cached.Status)

	mc.failSets(errors.New("connection reset by peer"))
	f.clock.Advance(time.Hour)
	_, err = f.svc.ExitCheckpoint(ctx, j.UUID, operator)
	require.NoError(t, err)

	got, err := f.svc.GetJourney(ctx, j.UUID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExited, got.Status)
	assert.GreaterOrEqual(t, mc.deletes, 1)
}

func TestCacheLoadKeepsNewerCachedVersion(t *testing.T) {
	mc := newMemoryCache()
	f := newFixtureWithCache(t, yardConfig(), mc)
	ctx := context.Background()
	j := f.insideJourney(t, "InternalParking")

	// a reader that loaded an older row before the latest commit
	stale := *j
	stale.Version = j.Version - 1
	stale.Status = model.StatusAtGate
	require.NoError(t, mc.SetJourney(ctx, &stale))

	got, err := f.svc.GetJourney(ctx, j.UUID)
	require.NoError(t, err)
	assert.Equal(t, j.Version, got.Version)
	assert.Equal(t, model.StatusInside, got.Status)
}
