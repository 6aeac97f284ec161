package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

const sampleTOML = `
[control_plane]
hostname = "router1"
rp_sla_base_url = "http://127.0.0.1:8081"
rp_rip1_base_url = "http://127.0.0.1:8082"

[[control_plane.static_routes]]
prefix = "10.0.0.0/8"
next_hop = "192.0.2.1"
admin_distance = 1

[rp_sla]
enabled = true
threshold_measure_interval = 30

[[rp_sla.routes]]
prefix = "172.16.0.0/16"
next_hop = "192.0.2.1"
priority = 10
threshold_ms = 50

[rp_rip1]
enabled = true
default_metric = 2
`

func TestLoadDecodesAllThreeTables(t *testing.T) {
	cfg, err := Load([]byte(sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "router1", cfg.ControlPlane.Hostname)
	require.Len(t, cfg.ControlPlane.StaticRoutes, 1)
	assert.Equal(t, "10.0.0.0/8", cfg.ControlPlane.StaticRoutes[0].Prefix)

	assert.True(t, cfg.RPSLA.Enabled)
	require.Len(t, cfg.RPSLA.Routes, 1)
	assert.Equal(t, 50, cfg.RPSLA.Routes[0].ThresholdMs)

	assert.True(t, cfg.RPRIP1.Enabled)
	assert.Equal(t, 2, cfg.RPRIP1.DefaultMetric)
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Load([]byte(sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.RPSLA.AdminDistance)
	assert.Equal(t, 120, cfg.RPRIP1.AdminDistance)
	assert.Equal(t, 1, cfg.ControlPlane.StaticRoutes[0].AdminDistance)
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	withExtra := sampleTOML + "\nunknown_future_key = \"whatever\"\n"
	_, err := Load([]byte(withExtra))
	assert.NoError(t, err)
}

func TestLoadFileRejectsNonTOMLExtension(t *testing.T) {
	_, err := LoadFile("/tmp/does-not-matter.yaml")
	require.Error(t, err)
	assert.Equal(t, errors.KindConfigInvalid, errors.GetKind(err))
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	_, err := Load([]byte("not = [valid"))
	require.Error(t, err)
	assert.Equal(t, errors.KindConfigInvalid, errors.GetKind(err))
}

func TestToSLAConfigConvertsDurationAndRoutes(t *testing.T) {
	cfg, err := Load([]byte(sampleTOML))
	require.NoError(t, err)

	slaCfg := cfg.ToSLAConfig()
	assert.Equal(t, 30*time.Second, slaCfg.ThresholdMeasureInterval)
	require.Len(t, slaCfg.Routes, 1)
	assert.Equal(t, "172.16.0.0/16", slaCfg.Routes[0].Prefix)
}

func TestToRIP1ConfigStartsFromDefaults(t *testing.T) {
	cfg, err := Load([]byte(sampleTOML))
	require.NoError(t, err)

	rip1Cfg := cfg.ToRIP1Config()
	assert.Equal(t, 120, rip1Cfg.AdminDistance)
	assert.Equal(t, 2, rip1Cfg.DefaultMetric)
	assert.NotZero(t, rip1Cfg.AdvertisementInterval)
	assert.NotNil(t, rip1Cfg.AcceptSources)
}

func TestToCPConfigCarriesHostnameAndStaticRoutes(t *testing.T) {
	cfg, err := Load([]byte(sampleTOML))
	require.NoError(t, err)

	cpCfg := cfg.ToCPConfig()
	assert.Equal(t, "router1", cpCfg.Hostname)
	require.Len(t, cpCfg.StaticRoutes, 1)
	assert.Equal(t, 120, cpCfg.RIP1AdminDistance)
}

func TestToRIP1ConfigCarriesTriggerRedistribution(t *testing.T) {
	withTrigger := sampleTOML + "\ntrigger_redistribution = true\ncontrol_plane_base_url = \"http://127.0.0.1:8080\"\n"
	cfg, err := Load([]byte(withTrigger))
	require.NoError(t, err)

	assert.True(t, cfg.RPRIP1.TriggerRedistribution)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.RPRIP1.ControlPlaneBaseURL)

	rip1Cfg := cfg.ToRIP1Config()
	assert.True(t, rip1Cfg.TriggerRedistribution)
}
