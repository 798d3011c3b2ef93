package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/metrics"
	"example.com/backstage/services/yard/internal/model"
)

func TestConnectSQLiteMigratesAndRecordsQueries(t *testing.T) {
	conn, err := Connect(&config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	before := metrics.GetMetricsCollector().Counter(metrics.CounterDBQueriesTotal)

	j := &model.TruckJourney{
		Base:            model.Base{UUID: "j-1"},
		ArrivalDateTime: time.Now().UTC(),
		Status:          model.StatusPending,
		WeightData:      &model.WeightRecord{ApprovalStatus: model.ApprovalNone},
	}
	require.NoError(t, conn.WithContext(context.Background()).Create(j).Error)

	var found model.TruckJourney
	require.NoError(t, conn.First(&found, "uuid = ?", "j-1").Error)
	assert.Equal(t, model.StatusPending, found.Status)
	require.NotNil(t, found.WeightData)
	assert.Equal(t, model.ApprovalNone, found.WeightData.ApprovalStatus)

	after := metrics.GetMetricsCollector().Counter(metrics.CounterDBQueriesTotal)
	assert.GreaterOrEqual(t, after-before, int64(2))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := Connect(&config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	assert.True(t, conn.Migrator().HasTable(&model.TruckJourney{}))
	assert.True(t, conn.Migrator().HasIndex(&model.TruckJourney{}, "idx_truck_journeys_updated_at"))
}
