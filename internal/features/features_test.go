package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager(t *testing.T) {
	m := NewManager()
	m.Register(RealtimeAlerts, true, "push alerts")
	m.Register(DashboardCache, false, "cache dashboards")

	assert.True(t, m.IsEnabled(RealtimeAlerts))
	assert.False(t, m.IsEnabled(DashboardCache))
	assert.False(t, m.IsEnabled("unknown"))

	assert.True(t, m.Set(DashboardCache, true))
	assert.True(t, m.IsEnabled(DashboardCache))
	assert.False(t, m.Set("unknown", true))
	assert.False(t, m.IsEnabled("unknown"))

	all := m.GetAll()
	assert.Equal(t, []FeatureFlag{
		{Name: DashboardCache, Enabled: true, Description: "cache dashboards"},
		{Name: RealtimeAlerts, Enabled: true, Description: "push alerts"},
	}, all)

	all[0].Enabled = false
	assert.True(t, m.IsEnabled(DashboardCache), "snapshot is a copy")
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.IsEnabled(DecisionStream))
}
