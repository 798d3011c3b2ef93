package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/model"
)

func newTestClient(t *testing.T) (CacheClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewRedisClient(&config.RedisConfig{
		Enabled: true,
		Host:    mr.Host(),
		Port:    port,
		TTL:     time.Minute,
	})
	require.NoError(t, err)
	return c, mr
}

func journeyAt(version int, status model.Status) *model.TruckJourney {
	return &model.TruckJourney{
		Base:    model.Base{UUID: "j-1"},
		Status:  status,
		Version: version,
	}
}

func TestDisabledClientAlwaysMisses(t *testing.T) {
	c, err := NewRedisClient(&config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.SetJourney(ctx, &model.TruckJourney{Base: model.Base{UUID: "j-1"}}))

	_, err = c.GetJourney(ctx, "j-1")
	assert.True(t, IsMiss(err))
	assert.NoError(t, c.DeleteJourney(ctx, "j-1"))
}

func TestJourneyKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "yard:journey:abc", journeyKey("abc"))
}

func TestSetJourneyRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetJourney(ctx, "j-1")
	assert.True(t, IsMiss(err))

	require.NoError(t, c.SetJourney(ctx, journeyAt(3, model.StatusInside)))

	got, err := c.GetJourney(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, model.StatusInside, got.Status)
	assert.Equal(t, time.Minute, mr.TTL(journeyKey("j-1")))
}

func TestSetJourneyKeepsNewerVersion(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJourney(ctx, journeyAt(5, model.StatusExited)))
	require.NoError(t, c.SetJourney(ctx, journeyAt(4, model.StatusInside)))

	got, err := c.GetJourney(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, model.StatusExited, got.Status)

	require.NoError(t, c.SetJourney(ctx, journeyAt(6, model.StatusExited)))
	got, err = c.GetJourney(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Version)
}

func TestDeleteAndExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJourney(ctx, journeyAt(1, model.StatusPending)))
	require.NoError(t, c.DeleteJourney(ctx, "j-1"))
	_, err := c.GetJourney(ctx, "j-1")
	assert.True(t, IsMiss(err))

	require.NoError(t, c.SetJourney(ctx, journeyAt(2, model.StatusAtGate)))
	mr.FastForward(2 * time.Minute)
	_, err = c.GetJourney(ctx, "j-1")
	assert.True(t, IsMiss(err))
}
