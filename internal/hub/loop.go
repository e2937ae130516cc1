package hub

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/serialhub/serialhub/internal/endpoint"
)

// run is the forwarding loop. It owns all I/O on the endpoint descriptors:
// no other goroutine reads or writes them while it runs.
//
// Each pass polls every live descriptor for readability with a bounded
// timeout, then drains and broadcasts whatever arrived. The timeout is
// what keeps cancellation prompt: with no traffic at all the loop still
// re-checks its state once per interval.
func (h *Hub) run(endpoints []*endpoint.Endpoint, done chan struct{}) {
	defer close(done)
	// A loop that exits on its own (poll failure) must not leave the hub
	// claiming to run. On the cooperative path Stop owns the transition
	// and this swap does nothing.
	defer func() {
		if h.state.CompareAndSwap(stateRunning, stateStopped) {
			h.metrics.Running.Set(0)
		}
	}()

	buf := make([]byte, h.readBufSize)
	fds := make([]unix.PollFd, len(endpoints))
	// dead marks endpoints dropped from the forwarding set after a read
	// failure. Their handles stay open until Close.
	dead := make([]bool, len(endpoints))
	timeout := int(h.pollInterval.Milliseconds())

	for h.state.Load() == stateRunning {
		for i, ep := range endpoints {
			fds[i] = unix.PollFd{Fd: int32(ep.Fd()), Events: unix.POLLIN}
			if dead[i] {
				// Negative descriptors are ignored by poll but keep
				// the slice aligned with endpoints.
				fds[i].Fd = -1
			}
		}

		ready, err := unix.Poll(fds, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			h.logger.Error("poll failed, terminating forwarding loop", zap.Error(err))
			return
		}
		if ready == 0 {
			continue
		}

		for i, ep := range endpoints {
			// POLLNVAL covers a descriptor invalidated under the loop;
			// the failed read that follows drops the endpoint.
			if fds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) == 0 {
				continue
			}
			h.forward(i, ep, endpoints, dead, buf)
		}
	}
}

// forward drains one chunk from the sender and broadcasts it to the other
// endpoints (and back to the sender with loopback).
//
// A failed read removes the sender from the forwarding set for the rest of
// this run. Writes are single-shot and non-blocking: a destination whose
// kernel buffer is full receives a partial chunk or nothing for this pass,
// and delivery is not retried.
func (h *Hub) forward(idx int, sender *endpoint.Endpoint, endpoints []*endpoint.Endpoint, dead []bool, buf []byte) {
	n, err := sender.Read(buf)
	if err != nil {
		if transientIOError(err) {
			return
		}
		dead[idx] = true
		h.metrics.RecordError("read")
		h.logger.Warn("read failed, dropping port from forwarding set",
			zap.String("port", sender.Path()), zap.Error(err))
		if h.debug {
			fmt.Fprintf(h.debugW, "%s read error: %v\n", sender.Path(), err)
		}
		return
	}
	if n == 0 {
		return
	}
	chunk := buf[:n]

	if h.debug {
		fmt.Fprintf(h.debugW, "%s %q\n", sender.Path(), chunk)
	}
	h.metrics.RecordChunk(sender.Path(), n)

	for j, dst := range endpoints {
		if dead[j] {
			continue
		}
		if j == idx && !h.loopback {
			continue
		}
		if _, err := dst.Write(chunk); err != nil && !transientIOError(err) {
			h.metrics.RecordError("write")
			h.logger.Warn("write failed",
				zap.String("port", dst.Path()), zap.Error(err))
			if h.debug {
				fmt.Fprintf(h.debugW, "%s write error: %v\n", dst.Path(), err)
			}
		}
	}
}

// transientIOError reports whether err is a benign wakeup on a
// non-blocking descriptor (nothing to read, or a signal interrupted the
// syscall) rather than a real failure.
func transientIOError(err error) bool {
	return err == unix.EAGAIN || err == unix.EINTR
}
