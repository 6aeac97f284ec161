// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"net/http"
	"net/netip"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/config"
	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/instance"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/metrics"
	"github.com/wrgeorge1983/rtrcp/internal/sla"
)

// SLAServer binds the SLA extras (§6) onto an instance.Registry of
// sla.Daemon instances.
type SLAServer struct {
	registry *instance.Registry[*sla.Daemon]
	clock    clock.Clock
	logger   *logging.Logger
	fp       fp.ForwardingPlane

	reg     *prometheus.Registry
	metrics *metrics.SLAMetrics

	mu      sync.Mutex
	configs map[string]sla.Config

	router *mux.Router
}

// NewSLAServer constructs an SLAServer with routes already bound.
func NewSLAServer(clk clock.Clock, logger *logging.Logger, fplane fp.ForwardingPlane) *SLAServer {
	if logger == nil {
		logger = logging.Default()
	}
	m := metrics.NewSLAMetrics()
	reg := prometheus.NewRegistry()
	m.RegisterMetrics(reg)

	s := &SLAServer{
		registry: instance.NewRegistry[*sla.Daemon](),
		clock:    clk,
		logger:   logger.WithComponent("sla-transport"),
		fp:       fplane,
		reg:      reg,
		metrics:  m,
		configs:  make(map[string]sla.Config),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router exposes the bound mux.Router.
func (s *SLAServer) Router() http.Handler { return s.router }

func (s *SLAServer) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/instances", s.handleListInstances).Methods("GET")
	s.router.HandleFunc("/instances", s.handleCreateFromConfig).Methods("POST")
	s.router.HandleFunc("/instances/{id}", s.handleGetInstance).Methods("GET")
	s.router.HandleFunc("/instances/{id}", s.handleDeleteInstance).Methods("DELETE")

	s.router.HandleFunc("/instances/{id}/configured_routes", s.handleConfiguredRoutes).Methods("GET")
	s.router.HandleFunc("/instances/{id}/rib_routes", s.handleRIBRoutes).Methods("GET")
	s.router.HandleFunc("/instances/{id}/routes", s.handleAddRoute).Methods("POST")
	s.router.HandleFunc("/instances/{id}/routes", s.handleDeleteRoute).Methods("DELETE")
	s.router.HandleFunc("/instances/{id}/evaluate_routes", s.handleEvaluateRoutes).Methods("POST")
	s.router.HandleFunc("/instances/{id}/redistribute_out", s.handleRedistributeOut).Methods("GET")
}

func (s *SLAServer) daemon(id string) (*sla.Daemon, error) {
	return s.registry.Get(id)
}

// updateMetrics publishes each working-RIB route's current status as a
// gauge, labeled by prefix and next hop so a dashboard can track any
// single route's up/down history over time.
func (s *SLAServer) updateMetrics(id string, d *sla.Daemon) {
	for _, route := range d.RIBRoutes() {
		s.metrics.RouteStatus.WithLabelValues(id, route.Prefix().String(), route.NextHop().String()).
			Set(metrics.RouteStatusValue(string(route.Status)))
	}
}

func instanceSpecSLA(id string, cfg sla.Config) map[string]any {
	return map[string]any{
		"instance_id":                id,
		"admin_distance":             cfg.AdminDistance,
		"threshold_measure_interval": cfg.ThresholdMeasureInterval.Seconds(),
		"configured_route_count":     len(cfg.Routes),
	}
}

func (s *SLAServer) handleListInstances(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.configs))
	for _, id := range s.registry.List() {
		out[id] = instanceSpecSLA(id, s.configs[id])
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *SLAServer) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon(id); err != nil {
		writeErr(w, r, err)
		return
	}

	s.mu.Lock()
	cfg := s.configs[id]
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, instanceSpecSLA(id, cfg))
}

func (s *SLAServer) handleCreateFromConfig(w http.ResponseWriter, r *http.Request) {
	var req createFromConfigRequest
	if !bindJSON(w, r, &req) {
		return
	}

	fileCfg, err := config.LoadFile(req.ConfigPath)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := s.CreateInstance(fileCfg.ToSLAConfig())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"instance_id": id})
}

// CreateInstance builds an sla.Daemon from cfg, registers it, and returns
// its instance id. Exported so cmd/slad can pre-create an instance from
// a config file at startup without going through the HTTP surface.
func (s *SLAServer) CreateInstance(cfg sla.Config) (string, error) {
	d, err := sla.NewDaemonFromConfig(cfg, s.fp, s.clock, s.logger)
	if err != nil {
		return "", err
	}
	id := s.registry.Create(d)

	s.mu.Lock()
	s.configs[id] = cfg
	s.mu.Unlock()

	return id, nil
}

func (s *SLAServer) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := s.registry.Delete(mux.Vars(r)["id"])

	s.mu.Lock()
	delete(s.configs, id)
	s.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]string{"instance_id": id})
}

func (s *SLAServer) handleConfiguredRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, asRecords(d.ConfiguredRoutes()))
}

func (s *SLAServer) handleRIBRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, asRecords(d.RIBRoutes()))
}

type addRouteRequest struct {
	Prefix      string `json:"prefix"`
	NextHop     string `json:"next_hop"`
	Priority    int    `json:"priority"`
	ThresholdMs int    `json:"threshold_ms"`
}

func parsePrefixAndAddr(prefixStr, addrStr string) (netip.Prefix, netip.Addr, error) {
	prefix, err := netip.ParsePrefix(prefixStr)
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, errors.Attr(errors.Wrap(err, errors.KindValidation, "invalid prefix"), "prefix", prefixStr)
	}
	addr, err := netip.ParseAddr(addrStr)
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, errors.Attr(errors.Wrap(err, errors.KindValidation, "invalid next_hop"), "next_hop", addrStr)
	}
	return prefix, addr, nil
}

func (s *SLAServer) handleAddRoute(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var req addRouteRequest
	if !bindJSON(w, r, &req) {
		return
	}

	prefix, addr, err := parsePrefixAndAddr(req.Prefix, req.NextHop)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	route := sla.NewRoute(s.clock, prefix, addr, req.Priority, req.ThresholdMs)
	d.AddConfiguredRoute(route)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type deleteRouteRequest struct {
	Prefix  string `json:"prefix"`
	NextHop string `json:"next_hop"`
}

func (s *SLAServer) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var req deleteRouteRequest
	if !bindJSON(w, r, &req) {
		return
	}

	prefix, addr, err := parsePrefixAndAddr(req.Prefix, req.NextHop)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	d.RemoveConfiguredRoute(sla.NewRoute(s.clock, prefix, addr, 0, 0))
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *SLAServer) handleEvaluateRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	d.EvaluateRoutes(r.Context())
	s.updateMetrics(mux.Vars(r)["id"], d)
	WriteJSON(w, http.StatusOK, asRecords(d.RIBRoutes()))
}

func (s *SLAServer) handleRedistributeOut(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}

	records := asRecords(d.RedistributeOut())
	admin := d.AdminDistance()
	for _, rec := range records {
		rec["admin_distance"] = admin
	}
	WriteJSON(w, http.StatusOK, records)
}
