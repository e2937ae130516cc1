// Package endpoint allocates the pseudo-terminal endpoints that back each
// emulated serial port.
//
// Each Endpoint is one controller/follower pseudo-terminal pair. The hub owns
// the controller side and moves bytes through it; the follower side is the
// device path (e.g. /dev/pts/5) that client software opens as if it were a
// real serial device.
//
// Features:
//   - Controller configured in raw mode: no line-discipline processing,
//     bytes pass through unmodified
//   - Controller configured non-blocking: reads and writes never stall the
//     forwarding loop
//   - Follower held open for the Endpoint's lifetime, so the controller
//     stays readable even when no client has the device open
//
// Allocation is all-or-nothing: any OS-level failure closes whatever was
// already opened and surfaces the error to the caller.
package endpoint
