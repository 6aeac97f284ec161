// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rip1

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run launches all four periodic loops described in §4.3.5 — listener,
// advertisements, requests, housekeeping — and blocks until ctx is
// cancelled or one loop returns a non-nil error. A loop whose configured
// interval is 0 is disabled, per §4.3.5.
func (d *Daemon) Run(ctx context.Context, cfg Config) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.fp.ListenUDP(gctx, Port, d.HandleUDPBytes)
	})

	if cfg.AdvertisementInterval > 0 {
		g.Go(func() error {
			d.runAdvertisementLoop(gctx, cfg.AdvertisementInterval)
			return nil
		})
	}

	if cfg.RequestInterval > 0 {
		g.Go(func() error {
			d.runRequestLoop(gctx, cfg.RequestInterval)
			return nil
		})
	}

	g.Go(func() error {
		d.runHousekeepingLoop(gctx)
		return nil
	})

	return g.Wait()
}

func (d *Daemon) runAdvertisementLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.SendResponse(); err != nil {
				d.logger.Warn("advertisement send failed", "error", err.Error())
			}
		}
	}
}

func (d *Daemon) runRequestLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			port, err := d.SendRequest()
			if err != nil {
				d.logger.Warn("request send failed", "error", err.Error())
				continue
			}

			listenFor := interval - time.Second
			if listenFor <= 0 {
				continue
			}
			if err := d.fp.ListenUDPTimed(ctx, port, d.HandleUDPBytes, listenFor.Seconds()); err != nil {
				d.logger.Warn("request reply listen failed", "error", err.Error())
			}
		}
	}
}

func (d *Daemon) runHousekeepingLoop(ctx context.Context) {
	ticker := time.NewTicker(HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunHousekeepingOnce()
		}
	}
}

// RunRedistributeTriggerConsumer drains the coalescing trigger channel
// and issues a Control Plane redistribute call for each signal, per
// §4.3.4's "schedule an asynchronous Control Plane redistribute call".
// Exported so a process that owns this daemon's lifecycle (e.g.
// cmd/rip1d) can wire it to an HTTPCPClient pointed at the configured
// Control Plane instance; it stays idle until a signal is enqueued on the
// trigger channel, which happens only if Config.TriggerRedistribution was
// set when the daemon was created.
func (d *Daemon) RunRedistributeTriggerConsumer(ctx context.Context, target RedistributeTarget) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.redistributeTrigger:
			if err := target.Redistribute(ctx); err != nil {
				d.logger.Warn("triggered control plane redistribute failed", "error", err.Error())
			}
		}
	}
}
