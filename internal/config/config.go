// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config decodes the TOML configuration file shared by all three
// daemon kinds: a control_plane table, an rp_sla table, and an rp_rip1
// table. Unknown keys are ignored, per §6.
package config

// Config is the top-level decoded configuration file.
type Config struct {
	ControlPlane ControlPlaneTable `toml:"control_plane"`
	RPSLA        RPSLATable        `toml:"rp_sla"`
	RPRIP1       RPRIP1Table       `toml:"rp_rip1"`
}

// ControlPlaneTable is the [control_plane] table.
type ControlPlaneTable struct {
	Hostname      string             `toml:"hostname"`
	RPSLABaseURL  string             `toml:"rp_sla_base_url"`
	RPRIP1BaseURL string             `toml:"rp_rip1_base_url"`
	StaticRoutes  []StaticRouteTable `toml:"static_routes"`
}

// StaticRouteTable is one entry of [[control_plane.static_routes]].
type StaticRouteTable struct {
	Prefix        string `toml:"prefix"`
	NextHop       string `toml:"next_hop"`
	AdminDistance int    `toml:"admin_distance"`
}

// RPSLATable is the [rp_sla] table.
type RPSLATable struct {
	Enabled                  bool            `toml:"enabled"`
	AdminDistance            int             `toml:"admin_distance"`
	ThresholdMeasureInterval int             `toml:"threshold_measure_interval"`
	Routes                   []SLARouteTable `toml:"routes"`
}

// SLARouteTable is one entry of [[rp_sla.routes]].
type SLARouteTable struct {
	Prefix      string `toml:"prefix"`
	NextHop     string `toml:"next_hop"`
	Priority    int    `toml:"priority"`
	ThresholdMs int    `toml:"threshold_ms"`
}

// RPRIP1Table is the [rp_rip1] table.
type RPRIP1Table struct {
	Enabled                bool   `toml:"enabled"`
	AdminDistance          int    `toml:"admin_distance"`
	DefaultMetric          int    `toml:"default_metric"`
	BroadcastAddr          string `toml:"broadcast_addr"`
	AdvertisementIntervalS int    `toml:"advertisement_interval_s"`
	RequestIntervalS       int    `toml:"request_interval_s"`
	RejectOwnMessages      bool   `toml:"reject_own_messages"`
	TriggerRedistribution  bool   `toml:"trigger_redistribution"`
	ControlPlaneBaseURL    string `toml:"control_plane_base_url"`
}

// applyDefaults fills in the spec-mandated defaults for any field left
// at its TOML zero value, mirroring the original's config.rp_sla.get(key,
// default) / config.rp_rip1["admin_distance"] convention.
func (c *Config) applyDefaults() {
	if c.RPSLA.AdminDistance == 0 {
		c.RPSLA.AdminDistance = 1
	}
	if c.RPSLA.ThresholdMeasureInterval == 0 {
		c.RPSLA.ThresholdMeasureInterval = 60
	}
	if c.RPRIP1.AdminDistance == 0 {
		c.RPRIP1.AdminDistance = 120
	}
	if c.RPRIP1.DefaultMetric == 0 {
		c.RPRIP1.DefaultMetric = 1
	}
	for i := range c.ControlPlane.StaticRoutes {
		if c.ControlPlane.StaticRoutes[i].AdminDistance == 0 {
			c.ControlPlane.StaticRoutes[i].AdminDistance = 1
		}
	}
}
