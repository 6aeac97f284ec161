// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRIP1MetricsRegisterOnOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRIP1Metrics()
	m.RegisterMetrics(reg)

	m.LearnedRoutes.WithLabelValues("abc12345").Set(3)
	m.PoisonedRoutesTotal.WithLabelValues("abc12345").Add(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestRIP1MetricsRegisterTwiceOnSeparateRegistriesDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		for i := 0; i < 2; i++ {
			reg := prometheus.NewRegistry()
			NewRIP1Metrics().RegisterMetrics(reg)
		}
	})
}

func TestSLAMetricsRouteStatusValue(t *testing.T) {
	require.Equal(t, 1.0, RouteStatusValue("up"))
	require.Equal(t, 2.0, RouteStatusValue("down"))
	require.Equal(t, 0.0, RouteStatusValue("unknown"))
	require.Equal(t, 0.0, RouteStatusValue(""))
}

func TestCPMetricsRegisterOnOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCPMetrics()
	m.RegisterMetrics(reg)

	m.BestRoutes.WithLabelValues("cp000001").Set(5)
	m.RedistributeCyclesTotal.WithLabelValues("cp000001").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
