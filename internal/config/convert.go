// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/cp"
	"github.com/wrgeorge1983/rtrcp/internal/rip1"
	"github.com/wrgeorge1983/rtrcp/internal/sla"
)

// ToSLAConfig converts the [rp_sla] table into the sla package's daemon
// Config.
func (c *Config) ToSLAConfig() sla.Config {
	routes := make([]sla.RouteConfig, 0, len(c.RPSLA.Routes))
	for _, r := range c.RPSLA.Routes {
		routes = append(routes, sla.RouteConfig{
			Prefix:      r.Prefix,
			NextHop:     r.NextHop,
			Priority:    r.Priority,
			ThresholdMs: r.ThresholdMs,
		})
	}

	return sla.Config{
		AdminDistance:            c.RPSLA.AdminDistance,
		ThresholdMeasureInterval: time.Duration(c.RPSLA.ThresholdMeasureInterval) * time.Second,
		Routes:                   routes,
	}
}

// ToRIP1Config converts the [rp_rip1] table into the rip1 package's
// daemon Config, starting from rip1.DefaultConfig so a table that omits
// the interval/accept-list fields still gets the spec-mandated defaults.
func (c *Config) ToRIP1Config() rip1.Config {
	cfg := rip1.DefaultConfig()

	cfg.AdminDistance = c.RPRIP1.AdminDistance
	cfg.DefaultMetric = c.RPRIP1.DefaultMetric
	cfg.RejectOwnMessages = c.RPRIP1.RejectOwnMessages
	cfg.TriggerRedistribution = c.RPRIP1.TriggerRedistribution

	if c.RPRIP1.BroadcastAddr != "" {
		cfg.BroadcastAddr = c.RPRIP1.BroadcastAddr
	}
	if c.RPRIP1.AdvertisementIntervalS != 0 {
		cfg.AdvertisementInterval = time.Duration(c.RPRIP1.AdvertisementIntervalS) * time.Second
	}
	if c.RPRIP1.RequestIntervalS != 0 {
		cfg.RequestInterval = time.Duration(c.RPRIP1.RequestIntervalS) * time.Second
	}

	return cfg
}

// ToCPConfig converts the [control_plane] table into the cp package's
// daemon Config.
func (c *Config) ToCPConfig() cp.Config {
	staticRoutes := make([]cp.StaticRouteSpec, 0, len(c.ControlPlane.StaticRoutes))
	for _, r := range c.ControlPlane.StaticRoutes {
		staticRoutes = append(staticRoutes, cp.StaticRouteSpec{
			Prefix:        r.Prefix,
			NextHop:       r.NextHop,
			AdminDistance: r.AdminDistance,
		})
	}

	return cp.Config{
		Hostname:          c.ControlPlane.Hostname,
		StaticRoutes:      staticRoutes,
		SLAAdminDistance:  c.RPSLA.AdminDistance,
		RIP1AdminDistance: c.RPRIP1.AdminDistance,
	}
}
