// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// cpd serves the Control Plane arbiter's HTTP control surface (§6). If
// -config is given, one instance is pre-created from it at startup,
// wired to its rp_sla/rp_rip1 peers over HTTP when those base URLs are
// configured.
//
// Usage:
//
//	cpd -addr :8083 -config /etc/rtrcp/cp.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/clock"
	"github.com/wrgeorge1983/rtrcp/internal/config"
	"github.com/wrgeorge1983/rtrcp/internal/cp"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/system"
	"github.com/wrgeorge1983/rtrcp/internal/transport"
)

func main() {
	addr := flag.String("addr", ":8083", "HTTP listen address for the cpd control surface")
	configPath := flag.String("config", "", "optional .toml config file for a pre-created instance")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "emit structured JSON logs instead of text")
	flag.Parse()

	logger := logging.New(logging.Config{Level: *logLevel, JSON: *logJSON, Output: os.Stderr})
	logging.SetDefault(logger)

	clk := clock.Real{}
	server := transport.NewControlPlaneServer(clk, logger)

	if *configPath != "" {
		fileCfg, err := config.LoadFile(*configPath)
		if err != nil {
			logger.Error("failed to load cpd config", "path", *configPath, "error", err.Error())
			os.Exit(1)
		}

		var slaPeer cp.SLAPeer
		if fileCfg.ControlPlane.RPSLABaseURL != "" {
			slaPeer = cp.NewHTTPSLAClient(fileCfg.ControlPlane.RPSLABaseURL, system.LatestInstanceID)
		}
		var rip1Peer cp.RIP1Peer
		if fileCfg.ControlPlane.RPRIP1BaseURL != "" {
			rip1Peer = cp.NewHTTPRIP1Client(fileCfg.ControlPlane.RPRIP1BaseURL, system.LatestInstanceID)
		}

		id, err := server.CreateInstance(fileCfg.ToCPConfig(), slaPeer, rip1Peer)
		if err != nil {
			logger.Error("failed to pre-create control_plane instance", "error", err.Error())
			os.Exit(1)
		}
		logger.Info("pre-created control_plane instance from config", "instance_id", id, "path", *configPath)
	}

	httpServer := &http.Server{Addr: *addr, Handler: server.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("cpd listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("cpd http server exited", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("cpd shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "cpd shutdown error: %v\n", err)
		os.Exit(1)
	}
}
