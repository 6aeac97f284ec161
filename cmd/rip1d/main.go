// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// rip1d serves the RIP v1 daemon's HTTP control surface (§6). If
// -config is given, one instance is pre-created from it at startup and
// its listener and periodic loops are started immediately; additional
// instances can still be created over HTTP via create_from_config.
//
// Usage:
//
//	rip1d -addr :8081 -config /etc/rtrcp/rip1.toml
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
	"github.com/wrgeorge1983/rtrcp/internal/fp"
	"github.com/wrgeorge1983/rtrcp/internal/logging"
	"github.com/wrgeorge1983/rtrcp/internal/rip1"
	"github.com/wrgeorge1983/rtrcp/internal/system"
	"github.com/wrgeorge1983/rtrcp/internal/transport"
)

func main() {
	addr := flag.String("addr", ":8081", "HTTP listen address for the rip1d control surface")
	configPath := flag.String("config", "", "optional .toml config file for a pre-created instance")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "emit structured JSON logs instead of text")
	flag.Parse()

	logger := logging.New(logging.Config{Level: *logLevel, JSON: *logJSON, Output: os.Stderr})
	logging.SetDefault(logger)

	clk := clock.Real{}
	fplane := fp.New()
	server := transport.NewRIP1Server(clk, logger, fplane)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		fileCfg, err := config.LoadFile(*configPath)
		if err != nil {
			logger.Error("failed to load rip1d config", "path", *configPath, "error", err.Error())
			os.Exit(1)
		}
		rip1Cfg := fileCfg.ToRIP1Config()
		id := server.CreateInstance(rip1Cfg)
		if err := server.StartListen(id); err != nil {
			logger.Error("failed to start rip1 listener", "instance_id", id, "error", err.Error())
			os.Exit(1)
		}
		if err := server.StartRun(id); err != nil {
			logger.Error("failed to start rip1 loops", "instance_id", id, "error", err.Error())
			os.Exit(1)
		}
		logger.Info("pre-created rip1 instance from config", "instance_id", id, "path", *configPath)

		if rip1Cfg.TriggerRedistribution && fileCfg.RPRIP1.ControlPlaneBaseURL != "" {
			d, err := server.Daemon(id)
			if err != nil {
				logger.Error("failed to look up rip1 instance for redistribute trigger consumer", "instance_id", id, "error", err.Error())
				os.Exit(1)
			}
			cpClient := rip1.NewHTTPCPClient(fileCfg.RPRIP1.ControlPlaneBaseURL, system.LatestInstanceID)
			go d.RunRedistributeTriggerConsumer(ctx, cpClient)
			logger.Info("rip1 triggered redistribution consumer started", "instance_id", id, "control_plane_base_url", fileCfg.RPRIP1.ControlPlaneBaseURL)
		}
	}

	httpServer := &http.Server{Addr: *addr, Handler: server.Router()}

	go func() {
		logger.Info("rip1d listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("rip1d http server exited", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("rip1d shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "rip1d shutdown error: %v\n", err)
		os.Exit(1)
	}
}
