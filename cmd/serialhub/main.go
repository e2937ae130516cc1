// Command serialhub creates a hub of virtual serial ports which stay
// available until the program exits. Once set up, the port names are
// printed to stdout, one per line; everything written to one port is
// forwarded to all the others.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/serialhub/serialhub/internal/hub"
	"github.com/serialhub/serialhub/internal/infrastructure/config"
	"github.com/serialhub/serialhub/internal/infrastructure/logging"
	"github.com/serialhub/serialhub/internal/infrastructure/monitoring"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] num_ports\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Create a hub of virtual serial ports, which will stay available until")
	fmt.Fprintln(os.Stderr, "the program exits. Once set up, the port names are printed to stdout,")
	fmt.Fprintln(os.Stderr, "one per line.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}

func main() {
	loopback := flag.BoolP("loopback", "l", false, "echo data back to the sending device too")
	debug := flag.BoolP("debug", "d", false, "log received data to stderr")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	numPorts, err := strconv.Atoi(flag.Arg(0))
	if err != nil || numPorts <= 0 {
		fmt.Fprintf(os.Stderr, "error: num_ports must be a positive integer, got %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid logging config: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := monitoring.Serve(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	h, err := hub.New(hub.Config{
		Ports:          numPorts,
		Loopback:       *loopback,
		Debug:          *debug,
		PollInterval:   cfg.Hub.PollInterval,
		ReadBufferSize: cfg.Hub.ReadBufferSize,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if err := h.Open(); err != nil {
		logger.Error("failed to open hub", zap.Error(err))
		os.Exit(1)
	}

	if err := h.Start(); err != nil {
		logger.Error("failed to start hub", zap.Error(err))
		h.Close()
		os.Exit(1)
	}

	ports, err := h.Ports()
	if err != nil {
		logger.Error("failed to list ports", zap.Error(err))
		h.Close()
		os.Exit(1)
	}
	// Stdout is unbuffered, so a piped reader sees each path promptly.
	for _, p := range ports {
		fmt.Println(p)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	if err := h.Close(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}
