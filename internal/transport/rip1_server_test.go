// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/rip1"
)

func newTestRIP1Server() *RIP1Server {
	return NewRIP1Server(clock.NewManual(time.Unix(0, 0)), nil, fp.NewFake())
}

func createRIP1Instance(t *testing.T, s *RIP1Server) string {
	t.Helper()

	d := rip1.NewDaemon(fp.NewFake(), clock.NewManual(time.Unix(0, 0)), nil, rip1.DefaultConfig())
	return s.registry.Create(d)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRIP1ServerListInstancesEmpty(t *testing.T) {
	s := newTestRIP1Server()
	rec := doRequest(t, s.Router(), http.MethodGet, "/instances", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Empty(t, out)
}

func TestRIP1ServerGetInstanceNotFound(t *testing.T) {
	s := newTestRIP1Server()
	rec := doRequest(t, s.Router(), http.MethodGet, "/instances/doesnotexist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRIP1ServerRedistributeInPopulatesRIB(t *testing.T) {
	s := newTestRIP1Server()
	id := createRIP1Instance(t, s)

	records := []rib.Record{
		{"prefix": "10.0.0.0/8", "next_hop": "192.0.2.1", "metric": 1, "route_source": "STATIC", "status": "up"},
	}
	rec := doRequest(t, s.Router(), http.MethodPost, "/instances/"+id+"/redistribute_in", records)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodGet, "/instances/"+id+"/rib_routes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "10.0.0.0/8", out[0]["prefix"])
}

func TestRIP1ServerRedistributeOutEmptyWithNoLearnedRoutes(t *testing.T) {
	s := newTestRIP1Server()
	id := createRIP1Instance(t, s)

	rec := doRequest(t, s.Router(), http.MethodGet, "/instances/"+id+"/redistribute_out", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Empty(t, out)
}

func TestRIP1ServerDeleteInstanceIsIdempotentOnSecondCall(t *testing.T) {
	s := newTestRIP1Server()
	id := createRIP1Instance(t, s)

	rec := doRequest(t, s.Router(), http.MethodDelete, "/instances/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodDelete, "/instances/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRIP1ServerDeleteInstanceCancelsBothListenAndRunLoops(t *testing.T) {
	s := newTestRIP1Server()
	id := createRIP1Instance(t, s)

	require.NoError(t, s.StartListen(id))
	require.NoError(t, s.StartRun(id))
	require.Len(t, s.cancels[id], 2)

	rec := doRequest(t, s.Router(), http.MethodDelete, "/instances/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, s.cancels[id])
}

func TestRIP1ServerCreateFromConfigFailsForMissingFile(t *testing.T) {
	s := newTestRIP1Server()
	rec := doRequest(t, s.Router(), http.MethodPost, "/instances", createFromConfigRequest{ConfigPath: "/tmp/does-not-exist-rtrcp.toml"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
