// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// slad serves the SLA daemon's HTTP control surface (§6). If -config is
// given, one instance is pre-created from it at startup; route
// evaluation is driven externally via evaluate_routes, since the SLA
// daemon has no background loop of its own.
//
// Usage:
//
//	slad -addr :8082 -config /etc/rtrcp/sla.toml
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
	"github.com/wrgeorge1983/rtrcp/internal/transport"
)

func main() {
	addr := flag.String("addr", ":8082", "HTTP listen address for the slad control surface")
	configPath := flag.String("config", "", "optional .toml config file for a pre-created instance")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "emit structured JSON logs instead of text")
	flag.Parse()

	logger := logging.New(logging.Config{Level: *logLevel, JSON: *logJSON, Output: os.Stderr})
	logging.SetDefault(logger)

	clk := clock.Real{}
	fplane := fp.New()
	server := transport.NewSLAServer(clk, logger, fplane)

	if *configPath != "" {
		fileCfg, err := config.LoadFile(*configPath)
		if err != nil {
			logger.Error("failed to load slad config", "path", *configPath, "error", err.Error())
			os.Exit(1)
		}
		id, err := server.CreateInstance(fileCfg.ToSLAConfig())
		if err != nil {
			logger.Error("failed to pre-create sla instance", "error", err.Error())
			os.Exit(1)
		}
		logger.Info("pre-created sla instance from config", "instance_id", id, "path", *configPath)
	}

	httpServer := &http.Server{Addr: *addr, Handler: server.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("slad listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("slad http server exited", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("slad shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "slad shutdown error: %v\n", err)
		os.Exit(1)
	}
}
