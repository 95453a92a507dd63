// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fiberpc-healthmon runs a cron-scheduled health check against
// a fiberpc server and logs its result on every tick until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/healthmon"
	"github.com/nishisan-dev/fiberpc/internal/nblog"
	"github.com/nishisan-dev/fiberpc/internal/rpcclient"
	"github.com/nishisan-dev/fiberpc/internal/rpcconfig"
)

func main() {
	configPath := flag.String("config", "/etc/fiberpc/healthmon.yaml", "path to client config file")
	schedule := flag.String("schedule", "@every 30s", "cron schedule for health checks")
	flag.Parse()

	cfg, err := rpcconfig.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := nblog.New(nblog.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	dial := func() (*rpcclient.SimpleClient, error) {
		switch cfg.Transport {
		case "local":
			conn, err := net.DialTimeout("unix", cfg.Address, cfg.Timeout)
			if err != nil {
				return nil, err
			}
			return rpcclient.DialLocal(conn), nil
		default: // "datagram"
			conn, err := net.DialTimeout("udp", cfg.Address, cfg.Timeout)
			if err != nil {
				return nil, err
			}
			return rpcclient.DialDatagram(conn), nil
		}
	}

	mon, err := healthmon.New(*schedule, dial, []byte("ping"), cfg.Timeout, logger)
	if err != nil {
		logger.Error("building monitor", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mon.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mon.Stop(stopCtx)
}
