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
	"github.com/wrgeorge1983/rtrcp/internal/cp"
	"github.com/wrgeorge1983/rtrcp/internal/instance"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/metrics"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// ControlPlaneServer binds the Control Plane extras (§6) onto an
// instance.Registry of cp.Daemon instances. Peer rp_sla/rp_rip1
// instances are reached over HTTP via cp.HTTPSLAClient/HTTPRIP1Client,
// always addressing the peer's "latest" instance — this server's
// config doesn't carry a peer instance id, only a base URL, so the
// most-recently-created peer instance is the only sensible target.
type ControlPlaneServer struct {
	registry *instance.Registry[*cp.Daemon]
	clock    clock.Clock
	logger   *logging.Logger

	reg     *prometheus.Registry
	metrics *metrics.CPMetrics

	mu      sync.Mutex
	configs map[string]cp.Config

	router *mux.Router
}

// NewControlPlaneServer constructs a ControlPlaneServer with routes
// already bound.
func NewControlPlaneServer(clk clock.Clock, logger *logging.Logger) *ControlPlaneServer {
	if logger == nil {
		logger = logging.Default()
	}
	m := metrics.NewCPMetrics()
	reg := prometheus.NewRegistry()
	m.RegisterMetrics(reg)

	s := &ControlPlaneServer{
		registry: instance.NewRegistry[*cp.Daemon](),
		clock:    clk,
		logger:   logger.WithComponent("cp-transport"),
		reg:      reg,
		metrics:  m,
		configs:  make(map[string]cp.Config),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router exposes the bound mux.Router.
func (s *ControlPlaneServer) Router() http.Handler { return s.router }

func (s *ControlPlaneServer) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/instances", s.handleListInstances).Methods("GET")
	s.router.HandleFunc("/instances", s.handleCreateFromConfig).Methods("POST")
	s.router.HandleFunc("/instances/{id}", s.handleGetInstance).Methods("GET")
	s.router.HandleFunc("/instances/{id}", s.handleDeleteInstance).Methods("DELETE")

	s.router.HandleFunc("/instances/{id}/routes", s.handleGetRoutes).Methods("GET")
	s.router.HandleFunc("/instances/{id}/static_routes", s.handleGetStaticRoutes).Methods("GET")
	s.router.HandleFunc("/instances/{id}/refresh_rib", s.handleRefreshRIB).Methods("POST")
	s.router.HandleFunc("/instances/{id}/redistribute", s.handleRedistribute).Methods("POST")
	s.router.HandleFunc("/instances/{id}/best_routes", s.handleBestRoutes).Methods("GET")
	s.router.HandleFunc("/instances/{id}/rp_sla_evaluate", s.handleRPSLAEvaluate).Methods("POST")
}

func (s *ControlPlaneServer) daemon(id string) (*cp.Daemon, error) {
	return s.registry.Get(id)
}

// updateMetrics refreshes the best-routes gauge for id. The
// redistribute-cycles counter is bumped by handleRedistribute itself.
func (s *ControlPlaneServer) updateMetrics(id string, d *cp.Daemon) {
	s.metrics.BestRoutes.WithLabelValues(id).Set(float64(len(d.ExportRoutes())))
}

func instanceSpecCP(id string, cfg cp.Config) map[string]any {
	return map[string]any{
		"instance_id":         id,
		"hostname":            cfg.Hostname,
		"sla_admin_distance":  cfg.SLAAdminDistance,
		"rip1_admin_distance": cfg.RIP1AdminDistance,
		"static_route_count":  len(cfg.StaticRoutes),
	}
}

func (s *ControlPlaneServer) handleListInstances(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.configs))
	for _, id := range s.registry.List() {
		out[id] = instanceSpecCP(id, s.configs[id])
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *ControlPlaneServer) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon(id); err != nil {
		writeErr(w, r, err)
		return
	}

	s.mu.Lock()
	cfg := s.configs[id]
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, instanceSpecCP(id, cfg))
}

func (s *ControlPlaneServer) handleCreateFromConfig(w http.ResponseWriter, r *http.Request) {
	var req createFromConfigRequest
	if !bindJSON(w, r, &req) {
		return
	}

	fileCfg, err := config.LoadFile(req.ConfigPath)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var slaPeer cp.SLAPeer
	if fileCfg.ControlPlane.RPSLABaseURL != "" {
		slaPeer = cp.NewHTTPSLAClient(fileCfg.ControlPlane.RPSLABaseURL, system.LatestInstanceID)
	}
	var rip1Peer cp.RIP1Peer
	if fileCfg.ControlPlane.RPRIP1BaseURL != "" {
		rip1Peer = cp.NewHTTPRIP1Client(fileCfg.ControlPlane.RPRIP1BaseURL, system.LatestInstanceID)
	}

	id, err := s.CreateInstance(fileCfg.ToCPConfig(), slaPeer, rip1Peer)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"instance_id": id})
}

// CreateInstance builds a cp.Daemon from cfg and the given peers,
// registers it, and returns its instance id. Exported so cmd/cpd can
// pre-create an instance from a config file at startup without going
// through the HTTP surface.
func (s *ControlPlaneServer) CreateInstance(cfg cp.Config, slaPeer cp.SLAPeer, rip1Peer cp.RIP1Peer) (string, error) {
	d, err := cp.NewDaemonFromConfig(cfg, s.clock, s.logger, slaPeer, rip1Peer)
	if err != nil {
		return "", err
	}
	id := s.registry.Create(d)

	s.mu.Lock()
	s.configs[id] = cfg
	s.mu.Unlock()

	return id, nil
}

func (s *ControlPlaneServer) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := s.registry.Delete(mux.Vars(r)["id"])

	s.mu.Lock()
	delete(s.configs, id)
	s.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]string{"instance_id": id})
}

// searchFilterFromQuery builds a rib.SearchFilter from the optional
// prefix/next_hop/source query parameters get_routes and
// get_static_routes accept. An invalid prefix or next_hop is treated as
// "not given" rather than an error, matching the original's permissive
// rib_entry_search(prefix=None, ...) defaults.
func searchFilterFromQuery(r *http.Request) rib.SearchFilter {
	var filter rib.SearchFilter
	if p, err := netip.ParsePrefix(r.URL.Query().Get("prefix")); err == nil {
		filter.Prefix = p
	}
	if a, err := netip.ParseAddr(r.URL.Query().Get("next_hop")); err == nil {
		filter.NextHop = a
	}
	filter.Source = r.URL.Query().Get("source")
	return filter
}

func (s *ControlPlaneServer) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, asRecords(d.Search(searchFilterFromQuery(r))))
}

func (s *ControlPlaneServer) handleGetStaticRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, asRecords(d.SearchStaticRoutes(searchFilterFromQuery(r))))
}

func (s *ControlPlaneServer) handleRefreshRIB(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := d.RefreshRIB(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	s.updateMetrics(mux.Vars(r)["id"], d)
	WriteJSON(w, http.StatusOK, asRecords(d.Routes()))
}

func (s *ControlPlaneServer) handleRedistribute(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := d.Redistribute(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	s.updateMetrics(id, d)
	s.metrics.RedistributeCyclesTotal.WithLabelValues(id).Inc()
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *ControlPlaneServer) handleBestRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.updateMetrics(mux.Vars(r)["id"], d)
	WriteJSON(w, http.StatusOK, asRecords(d.ExportRoutes()))
}

func (s *ControlPlaneServer) handleRPSLAEvaluate(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := d.RPSLAEvaluateRoutes(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
