package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/tat"
)

func TestStaticNormalisesPolicyKeys(t *testing.T) {
	s, err := NewStatic(config.YardConfig{
		TimeZone: "UTC",
		TAT: config.TATConfig{
			IdealMinutes:             map[string]int{"default": 180, "rm": 240, "pm": 150},
			WarningThresholdPercent:  20,
			CriticalThresholdPercent: 50,
		},
	})
	require.NoError(t, err)

	policy, err := s.TATPolicy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 240, tat.IdealMinutes(model.MaterialRM, policy))
	assert.Equal(t, 150, tat.IdealMinutes(model.MaterialPM, policy))
	assert.Equal(t, 180, tat.IdealMinutes(model.MaterialFG, policy))
	assert.Equal(t, "UTC", s.Location().String())
}

func TestStaticRejectsUnknownZone(t *testing.T) {
	_, err := NewStatic(config.YardConfig{TimeZone: "Nowhere/Land"})
	assert.Error(t, err)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(nil, "anything"))
	assert.True(t, Contains([]string{"Swift Logistics"}, " swift logistics "))
	assert.False(t, Contains([]string{"Swift Logistics"}, "Blue Dart"))
}
