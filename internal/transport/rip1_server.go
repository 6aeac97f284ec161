// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/config"
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/instance"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/metrics"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
	"github.com/wrgeorge1983/rtrcp/internal/rip1"
)

// RIP1Server binds the RIP1 extras (§6) onto an instance.Registry of
// rip1.Daemon instances, on top of the common list/get/create/delete
// surface every daemon kind shares.
type RIP1Server struct {
	registry *instance.Registry[*rip1.Daemon]
	clock    clock.Clock
	logger   *logging.Logger
	fp       fp.ForwardingPlane

	reg     *prometheus.Registry
	metrics *metrics.RIP1Metrics

	mu      sync.Mutex
	configs map[string]rip1.Config
	// cancels holds every background loop's cancel func for an
	// instance — StartListen and StartRun each add one independently,
	// so deleting an instance must stop both, not just whichever
	// call happened last.
	cancels map[string][]context.CancelFunc

	router *mux.Router
}

// NewRIP1Server constructs a RIP1Server with routes already bound.
func NewRIP1Server(clk clock.Clock, logger *logging.Logger, fplane fp.ForwardingPlane) *RIP1Server {
	if logger == nil {
		logger = logging.Default()
	}
	m := metrics.NewRIP1Metrics()
	reg := prometheus.NewRegistry()
	m.RegisterMetrics(reg)

	s := &RIP1Server{
		registry: instance.NewRegistry[*rip1.Daemon](),
		clock:    clk,
		logger:   logger.WithComponent("rip1-transport"),
		fp:       fplane,
		reg:      reg,
		metrics:  m,
		configs:  make(map[string]rip1.Config),
		cancels:  make(map[string][]context.CancelFunc),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router exposes the bound mux.Router, e.g. to wrap with middleware or
// embed in an *http.Server.
func (s *RIP1Server) Router() http.Handler { return s.router }

func (s *RIP1Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/instances", s.handleListInstances).Methods("GET")
	s.router.HandleFunc("/instances", s.handleCreateFromConfig).Methods("POST")
	s.router.HandleFunc("/instances/{id}", s.handleGetInstance).Methods("GET")
	s.router.HandleFunc("/instances/{id}", s.handleDeleteInstance).Methods("DELETE")

	s.router.HandleFunc("/instances/{id}/rib_routes", s.handleRIBRoutes).Methods("GET")
	s.router.HandleFunc("/instances/{id}/full", s.handleFull).Methods("GET")
	s.router.HandleFunc("/instances/{id}/redistribute_in", s.handleRedistributeIn).Methods("POST")
	s.router.HandleFunc("/instances/{id}/redistribute_out", s.handleRedistributeOut).Methods("GET")
	s.router.HandleFunc("/instances/{id}/refresh_rib", s.handleRefreshRIB).Methods("POST")
	s.router.HandleFunc("/instances/{id}/send_response", s.handleSendResponse).Methods("POST")
	s.router.HandleFunc("/instances/{id}/send_request", s.handleSendRequest).Methods("POST")
	s.router.HandleFunc("/instances/{id}/listen", s.handleListen).Methods("POST")
	s.router.HandleFunc("/instances/{id}/run", s.handleRun).Methods("POST")
}

func (s *RIP1Server) daemon(id string) (*rip1.Daemon, error) {
	return s.registry.Get(id)
}

// Daemon exposes the rip1.Daemon registered under id. Exported so
// cmd/rip1d can call its RunRedistributeTriggerConsumer to wire a
// Control Plane redistribute consumer without duplicating the HTTP
// surface's id resolution.
func (s *RIP1Server) Daemon(id string) (*rip1.Daemon, error) {
	return s.daemon(id)
}

// updateMetrics refreshes the learned/redistributed gauges and bumps the
// poisoned-routes counter by however many poisoned (metric 16) entries
// currently sit in the learned table, for every handler that touches
// daemon state worth observing.
func (s *RIP1Server) updateMetrics(id string, d *rip1.Daemon) {
	learned := d.LearnedRoutes()
	s.metrics.LearnedRoutes.WithLabelValues(id).Set(float64(len(learned)))
	s.metrics.RedistributedRoutes.WithLabelValues(id).Set(float64(len(d.RedistributedRoutes())))

	poisoned := 0
	for _, route := range learned {
		if route.Metric >= rip1.MetricInfinity {
			poisoned++
		}
	}
	if poisoned > 0 {
		s.metrics.PoisonedRoutesTotal.WithLabelValues(id).Add(float64(poisoned))
	}
}

func instanceSpecRIP1(id string, cfg rip1.Config) map[string]any {
	return map[string]any{
		"instance_id":            id,
		"admin_distance":         cfg.AdminDistance,
		"default_metric":         cfg.DefaultMetric,
		"broadcast_addr":         cfg.BroadcastAddr,
		"advertisement_interval": cfg.AdvertisementInterval.Seconds(),
		"request_interval":       cfg.RequestInterval.Seconds(),
		"reject_own_messages":    cfg.RejectOwnMessages,
	}
}

func (s *RIP1Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.configs))
	for _, id := range s.registry.List() {
		out[id] = instanceSpecRIP1(id, s.configs[id])
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *RIP1Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon(id); err != nil {
		writeErr(w, r, err)
		return
	}

	s.mu.Lock()
	cfg := s.configs[id]
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, instanceSpecRIP1(id, cfg))
}

type createFromConfigRequest struct {
	ConfigPath string `json:"config_path"`
}

func (s *RIP1Server) handleCreateFromConfig(w http.ResponseWriter, r *http.Request) {
	var req createFromConfigRequest
	if !bindJSON(w, r, &req) {
		return
	}

	fileCfg, err := config.LoadFile(req.ConfigPath)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	id := s.CreateInstance(fileCfg.ToRIP1Config())
	WriteJSON(w, http.StatusCreated, map[string]string{"instance_id": id})
}

// CreateInstance builds a rip1.Daemon from cfg, registers it, and returns
// its instance id. Exported so cmd/rip1d can pre-create an instance from
// a config file at startup without going through the HTTP surface.
func (s *RIP1Server) CreateInstance(cfg rip1.Config) string {
	d := rip1.NewDaemon(s.fp, s.clock, s.logger, cfg)
	id := s.registry.Create(d)

	s.mu.Lock()
	s.configs[id] = cfg
	s.mu.Unlock()

	return id
}

func (s *RIP1Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := s.registry.Delete(mux.Vars(r)["id"])

	s.mu.Lock()
	delete(s.configs, id)
	for _, cancel := range s.cancels[id] {
		cancel()
	}
	delete(s.cancels, id)
	s.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]string{"instance_id": id})
}

func (s *RIP1Server) handleRIBRoutes(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, asRecords(d.RIBRoutes()))
}

func (s *RIP1Server) handleFull(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	s.updateMetrics(id, d)
	WriteJSON(w, http.StatusOK, map[string]any{
		"rib":           asRecords(d.RIBRoutes()),
		"learned":       asRecords(d.LearnedRoutes()),
		"redistributed": asRecords(d.RedistributedRoutes()),
	})
}

func (s *RIP1Server) handleRedistributeIn(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var records []rib.Record
	if !bindJSON(w, r, &records) {
		return
	}

	if err := d.RedistributeIn(records); err != nil {
		writeErr(w, r, err)
		return
	}
	s.updateMetrics(mux.Vars(r)["id"], d)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *RIP1Server) handleRedistributeOut(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, d.RedistributeOut())
}

func (s *RIP1Server) handleRefreshRIB(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	d.RefreshRIB()
	s.updateMetrics(mux.Vars(r)["id"], d)
	WriteJSON(w, http.StatusOK, asRecords(d.RIBRoutes()))
}

func (s *RIP1Server) handleSendResponse(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := d.SendResponse(); err != nil {
		writeErr(w, r, err)
		return
	}
	s.updateMetrics(mux.Vars(r)["id"], d)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *RIP1Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	d, err := s.daemon(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	port, err := d.SendRequest()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"source_port": port})
}

// handleListen starts just the UDP listener loop in the background,
// independent of the advertisement/request/housekeeping loops that
// handleRun starts together.
func (s *RIP1Server) handleListen(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon(id); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.StartListen(id); err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StartListen launches just the UDP listener loop for id in the
// background. Exported so cmd/rip1d can start it at process startup for
// a pre-created instance.
func (s *RIP1Server) StartListen(id string) error {
	d, err := s.daemon(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[id] = append(s.cancels[id], cancel)
	s.mu.Unlock()

	go func() {
		if err := s.fp.ListenUDP(ctx, rip1.Port, d.HandleUDPBytes); err != nil && ctx.Err() == nil {
			s.logger.Error("rip1 listener exited", "instance_id", id, "error", err.Error())
		}
	}()
	return nil
}

// handleRun starts all four periodic loops (§4.3.5) in the background
// and returns immediately; the loops run until the instance is deleted
// or the process exits.
func (s *RIP1Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon(id); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.StartRun(id); err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StartRun launches the four periodic loops for id in the background.
// Exported so cmd/rip1d can start them at process startup for a
// pre-created instance.
func (s *RIP1Server) StartRun(id string) error {
	d, err := s.daemon(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cfg := s.configs[id]
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[id] = append(s.cancels[id], cancel)
	s.mu.Unlock()

	go func() {
		if err := d.Run(ctx, cfg); err != nil && ctx.Err() == nil {
			s.logger.Error("rip1 daemon loops exited", "instance_id", id, "error", err.Error())
		}
	}()
	return nil
}
