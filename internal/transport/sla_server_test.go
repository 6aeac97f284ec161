// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/sla"
)

func newTestSLAServer() *SLAServer {
	return NewSLAServer(clock.NewManual(time.Unix(0, 0)), nil, fp.NewFake())
}

func createSLAInstance(t *testing.T, s *SLAServer) string {
	t.Helper()
	d := sla.NewDaemon(fp.NewFake(), clock.NewManual(time.Unix(0, 0)), nil, 1, 60*time.Second)
	return s.registry.Create(d)
}

func TestSLAServerAddAndListConfiguredRoutes(t *testing.T) {
	s := newTestSLAServer()
	id := createSLAInstance(t, s)

	rec := doRequest(t, s.Router(), http.MethodPost, "/instances/"+id+"/routes", addRouteRequest{
		Prefix: "172.16.0.0/16", NextHop: "192.0.2.1", Priority: 10, ThresholdMs: 50,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodGet, "/instances/"+id+"/configured_routes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
}

func TestSLAServerDeleteRouteRemovesIt(t *testing.T) {
	s := newTestSLAServer()
	id := createSLAInstance(t, s)

	doRequest(t, s.Router(), http.MethodPost, "/instances/"+id+"/routes", addRouteRequest{
		Prefix: "172.16.0.0/16", NextHop: "192.0.2.1", Priority: 10, ThresholdMs: 50,
	})

	rec := doRequest(t, s.Router(), http.MethodDelete, "/instances/"+id+"/routes", deleteRouteRequest{
		Prefix: "172.16.0.0/16", NextHop: "192.0.2.1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodGet, "/instances/"+id+"/configured_routes", nil)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Empty(t, out)
}

func TestSLAServerAddRouteRejectsInvalidPrefix(t *testing.T) {
	s := newTestSLAServer()
	id := createSLAInstance(t, s)

	rec := doRequest(t, s.Router(), http.MethodPost, "/instances/"+id+"/routes", addRouteRequest{
		Prefix: "not-a-prefix", NextHop: "192.0.2.1", Priority: 10, ThresholdMs: 50,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSLAServerRedistributeOutEmptyWithoutEvaluation(t *testing.T) {
	s := newTestSLAServer()
	id := createSLAInstance(t, s)

	doRequest(t, s.Router(), http.MethodPost, "/instances/"+id+"/routes", addRouteRequest{
		Prefix: "172.16.0.0/16", NextHop: "192.0.2.1", Priority: 10, ThresholdMs: 50,
	})

	rec := doRequest(t, s.Router(), http.MethodGet, "/instances/"+id+"/redistribute_out", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Empty(t, out)
}
