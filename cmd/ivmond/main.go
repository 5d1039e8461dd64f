// Command ivmond is the VM integrity monitor daemon: it loads the monitor
// configuration, builds the hypervisor/network-proxy adapters, and serves
// the Control Facade over a minimal net/rpc listener.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dando385/vm-integrity-monitor/internal/config"
	"github.com/dando385/vm-integrity-monitor/internal/env"
	"github.com/dando385/vm-integrity-monitor/internal/hypervisor"
	"github.com/dando385/vm-integrity-monitor/internal/logging"
	"github.com/dando385/vm-integrity-monitor/internal/netproxy"
	"github.com/dando385/vm-integrity-monitor/internal/registry"
	"github.com/dando385/vm-integrity-monitor/internal/telemetry"
)

func main() {
	env.Load()

	var (
		cfgPath      = flag.String("config", "cfg/monitor.yaml", "monitor config file path")
		hashSetsPath = flag.String("hashsets", "cfg/hashes.yaml", "trusted hash-sets file path")
		virshConnect = flag.String("virsh-connect", "qemu:///system", "libvirt connection URI for virsh")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
		metricsAddr  = flag.String("metrics-addr", ":9121", "Prometheus /metrics listen address")
	)
	flag.Parse()

	log := logging.Configure(logging.Config{Level: *logLevel, Service: "ivmond"})

	doc, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ivmond: %v\n", err)
		os.Exit(1)
	}

	hashSets, err := config.LoadHashSets(*hashSetsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ivmond: %v\n", err)
		os.Exit(1)
	}

	hv := hypervisor.NewVirsh(*virshConnect)
	proxy := netproxy.NewHTTPProxy(doc.VMServer.NetworkProxy)
	metrics := telemetry.New()

	reg := registry.New(doc, hv, proxy, hashSets, registry.NewDebuggerFactory(), log, metrics)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		log.Info().Str("addr", *metricsAddr).Msg("serving telemetry")
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	svc := registry.NewService(reg)
	if err := rpc.Register(svc); err != nil {
		fmt.Fprintf(os.Stderr, "ivmond: register control service: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", doc.VMServer.Host, doc.VMServer.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ivmond: listen %s: %v\n", addr, err)
		os.Exit(1)
	}
	log.Info().Str("addr", addr).Msg("control facade listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Error().Err(err).Msg("control facade accept failed")
			continue
		}
		go rpc.ServeConn(conn)
	}
}
