package hub

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/serialhub/serialhub/internal/endpoint"
	"github.com/serialhub/serialhub/internal/infrastructure/logging"
	"github.com/serialhub/serialhub/internal/infrastructure/monitoring"
)

// Default tunables, used when Config leaves them zero.
const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultReadBufferSize = 4096
)

// Forwarding loop states. Stop flips running to stopping and waits; the
// loop observes the change within one poll interval and exits.
const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

// Config defines a hub.
type Config struct {
	// Ports is the number of serial ports to emulate. Must be positive.
	Ports int
	// Loopback echoes each chunk back to the port that sent it, in
	// addition to the other ports.
	Loopback bool
	// Debug writes one diagnostic line per received chunk to DebugWriter.
	Debug bool

	// PollInterval bounds the readiness wait; it is also the worst-case
	// latency for observing a stop request. Defaults to 100ms.
	PollInterval time.Duration
	// ReadBufferSize caps the size of a single forwarded chunk.
	// Defaults to 4096.
	ReadBufferSize int
	// DebugWriter receives diagnostic lines. Defaults to stderr.
	DebugWriter io.Writer
	// Logger receives lifecycle and error logs. Defaults to a no-op
	// logger.
	Logger *logging.Logger
	// Metrics receives forwarding counters. Defaults to an unregistered
	// collector.
	Metrics *monitoring.Metrics
}

// Hub owns a set of pseudo-terminal endpoints and a forwarding loop that
// broadcasts bytes between them.
//
// Lifecycle methods (Open, Start, Stop, Close, Ports) are safe to call
// from the foreground while the loop runs; they are serialized by a mutex.
// The endpoint set is only mutated while the loop is stopped.
type Hub struct {
	numPorts int
	loopback bool
	debug    bool

	pollInterval time.Duration
	readBufSize  int
	debugW       io.Writer
	logger       *logging.Logger
	metrics      *monitoring.Metrics

	mu        sync.Mutex
	endpoints []*endpoint.Endpoint // nil while closed, allocation order
	state     atomic.Int32
	done      chan struct{}
}

// New creates a hub. It fails with ErrInvalidPortCount for a non-positive
// port count, before any OS resource is allocated.
func New(cfg Config) (*Hub, error) {
	if cfg.Ports <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPortCount, cfg.Ports)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.DebugWriter == nil {
		cfg.DebugWriter = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewNop()
	}

	return &Hub{
		numPorts:     cfg.Ports,
		loopback:     cfg.Loopback,
		debug:        cfg.Debug,
		pollInterval: cfg.PollInterval,
		readBufSize:  cfg.ReadBufferSize,
		debugW:       cfg.DebugWriter,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Open allocates the hub's endpoints. If any allocation fails, every
// endpoint allocated so far is closed and the error propagates; the hub is
// never left half-open. Opening an already open hub closes it first.
func (h *Hub) Open() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open()
}

func (h *Hub) open() error {
	if err := h.close(); err != nil {
		return err
	}

	eps := make([]*endpoint.Endpoint, 0, h.numPorts)
	for i := 0; i < h.numPorts; i++ {
		ep, err := endpoint.Allocate()
		if err != nil {
			for _, allocated := range eps {
				allocated.Close()
			}
			return fmt.Errorf("failed to allocate port %d of %d: %w", i+1, h.numPorts, err)
		}
		eps = append(eps, ep)
	}

	h.endpoints = eps
	h.metrics.PortsOpen.Set(float64(len(eps)))
	h.logger.Info("hub opened", zap.Int("ports", len(eps)))
	return nil
}

// Close stops the forwarding loop and releases every endpoint. Closing an
// already closed hub is a no-op.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.close()
}

func (h *Hub) close() error {
	h.stop()
	if h.endpoints == nil {
		return nil
	}

	var firstErr error
	for _, ep := range h.endpoints {
		if err := ep.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.endpoints = nil
	h.metrics.PortsOpen.Set(0)
	h.logger.Info("hub closed")
	return firstErr
}

// Start launches the forwarding loop in a background goroutine. Starting a
// running hub stops the existing loop first, so the caller always ends up
// with exactly one fresh loop. Fails with ErrNotOpen on a closed hub.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.start()
}

func (h *Hub) start() error {
	if h.endpoints == nil {
		return ErrNotOpen
	}
	h.stop()

	h.done = make(chan struct{})
	h.state.Store(stateRunning)
	h.metrics.Running.Set(1)
	go h.run(h.endpoints, h.done)

	h.logger.Info("forwarding loop started",
		zap.Int("ports", len(h.endpoints)),
		zap.Bool("loopback", h.loopback),
		zap.Duration("poll_interval", h.pollInterval))
	return nil
}

// Stop signals the forwarding loop to exit and blocks until it has. No
// forwarding happens after Stop returns. Stopping a stopped hub is a
// no-op.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stop()
}

func (h *Hub) stop() {
	if !h.state.CompareAndSwap(stateRunning, stateStopping) {
		return
	}
	<-h.done
	h.state.Store(stateStopped)
	h.metrics.Running.Set(0)
	h.logger.Info("forwarding loop stopped")
}

// Running reports whether the forwarding loop is active.
func (h *Hub) Running() bool {
	return h.state.Load() == stateRunning
}

// Ports returns the device paths clients open to talk to the hub, in
// allocation order. Fails with ErrNotOpen on a closed hub.
func (h *Hub) Ports() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.endpoints == nil {
		return nil, ErrNotOpen
	}
	paths := make([]string, len(h.endpoints))
	for i, ep := range h.endpoints {
		paths[i] = ep.Path()
	}
	return paths, nil
}

// Session opens and starts the hub, hands the port paths to fn, and tears
// the hub down again on every exit path, including an error or panic in
// fn.
func (h *Hub) Session(fn func(ports []string) error) error {
	if err := h.Open(); err != nil {
		return err
	}
	defer h.Close()

	if err := h.Start(); err != nil {
		return err
	}

	ports, err := h.Ports()
	if err != nil {
		return err
	}
	return fn(ports)
}
