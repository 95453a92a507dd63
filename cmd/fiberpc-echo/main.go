// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fiberpc-echo runs or exercises an echo service over all
// three fiberpc transports, as one binary with "serve" and "call"
// subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nishisan-dev/fiberpc/internal/nblog"
	"github.com/nishisan-dev/fiberpc/internal/rpcclient"
	"github.com/nishisan-dev/fiberpc/internal/rpcconfig"
	"github.com/nishisan-dev/fiberpc/internal/rpcmetrics"
	"github.com/nishisan-dev/fiberpc/internal/rpcserver"
	"github.com/nishisan-dev/fiberpc/internal/transport"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: fiberpc-echo <serve|call> [flags]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "call":
		runCall(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q (want serve or call)\n", os.Args[1])
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "/etc/fiberpc/echo-server.yaml", "path to server config file")
	fs.Parse(args)

	cfg, err := rpcconfig.LoadServerConfig(*configPath)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts := &rpcserver.Options{
		Logger:         logger,
		BytesPerSecond: cfg.RateLimit.Parsed(),
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		collector := rpcmetrics.NewCollector()
		opts.Metrics = collector

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "address", cfg.Metrics.Listen)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	echo := rpcserver.ServiceFunc(func(_ context.Context, request []byte, rsp *wire.RspBuf) error {
		_, err := rsp.Write(request)
		return err
	})

	var instances []*rpcserver.ServerInstance
	if cfg.Datagram.Enabled {
		inst, err := rpcserver.StartDatagram(ctx, cfg.Datagram.Listen, echo, opts)
		if err != nil {
			logger.Error("starting datagram engine", "error", err)
			os.Exit(1)
		}
		logger.Info("datagram engine listening", "address", cfg.Datagram.Listen)
		instances = append(instances, inst)
	}
	if cfg.Stream.Enabled {
		inst, err := rpcserver.StartStream(ctx, cfg.Stream.Listen, echo, opts)
		if err != nil {
			logger.Error("starting stream engine", "error", err)
			os.Exit(1)
		}
		logger.Info("stream engine listening", "address", cfg.Stream.Listen)
		instances = append(instances, inst)
	}
	if cfg.Local.Enabled {
		inst, err := rpcserver.StartLocal(ctx, cfg.Local.Path, echo, opts)
		if err != nil {
			logger.Error("starting local engine", "error", err)
			os.Exit(1)
		}
		logger.Info("local engine listening", "path", cfg.Local.Path)
		instances = append(instances, inst)
	}

	if len(instances) == 0 {
		logger.Error("no transport enabled in config; nothing to serve")
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	for _, inst := range instances {
		inst.Close()
	}
	if metricsSrv != nil {
		metricsSrv.Close()
	}
}

func runCall(args []string) {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	configPath := fs.String("config", "/etc/fiberpc/echo-client.yaml", "path to client config file")
	payload := fs.String("payload", "Hello", "request payload to send")
	fs.Parse(args)

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

	req := wire.NewReqBuf()
	req.WriteString(*payload)

	var rsp []byte
	switch cfg.Transport {
	case "datagram":
		conn, dialErr := net.Dial("udp", cfg.Address)
		if dialErr != nil {
			logger.Error("dial", "error", dialErr)
			os.Exit(1)
		}
		defer conn.Close()
		client := rpcclient.DialDatagram(conn)
		client.SetTimeout(cfg.Timeout)
		rsp, err = client.CallService(req)
	case "local":
		conn, dialErr := net.Dial("unix", cfg.Address)
		if dialErr != nil {
			logger.Error("dial", "error", dialErr)
			os.Exit(1)
		}
		defer conn.Close()
		client := rpcclient.DialLocal(conn)
		client.SetTimeout(cfg.Timeout)
		rsp, err = client.CallService(req)
	default: // "stream"
		conn, dialErr := net.DialTimeout("tcp", cfg.Address, cfg.Timeout)
		if dialErr != nil {
			logger.Error("dial", "error", dialErr)
			os.Exit(1)
		}
		client := rpcclient.Connect(transport.New(conn), logger)
		client.SetTimeout(cfg.Timeout)
		defer client.Close()
		rsp, err = client.CallService(req)
	}

	if err != nil {
		logger.Error("call failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(rsp))
}
