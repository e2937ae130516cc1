// Package hub manages a set of pseudo-terminal backed serial ports and
// forwards bytes between them, emulating a shared serial bus.
//
// A chunk written to any port by a client shows up on every other port in
// the hub. With loopback enabled it is echoed back to the sender as well.
//
// Lifecycle:
//   - New validates configuration; no OS resource is touched yet
//   - Open allocates the pseudo-terminal endpoints (all-or-nothing)
//   - Start runs the forwarding loop in a background goroutine
//   - Stop signals the loop and waits for it to exit
//   - Close stops the loop and releases every endpoint
//
// Open on an opened hub closes it first; Start on a running hub restarts
// the loop. Stop and Close are no-ops when there is nothing to do.
//
// The forwarding loop multiplexes readiness over all controller descriptors
// with a bounded poll timeout, so it neither busy-spins nor delays a stop
// request by more than one interval.
//
// Example Usage:
//
//	h, err := hub.New(hub.Config{Ports: 2})
//	if err != nil {
//		return err
//	}
//	err = h.Session(func(ports []string) error {
//		// ports[0] and ports[1] are device paths like /dev/pts/5
//		return runTests(ports)
//	})
package hub
