// Package monitoring provides Prometheus metrics for the hub.
//
// Metrics Exposed:
//   - serialhub_chunks_forwarded_total: chunks forwarded, labeled by source port
//   - serialhub_bytes_forwarded_total: bytes forwarded, labeled by source port
//   - serialhub_forward_errors_total: read/write failures, labeled by direction
//   - serialhub_ports_open: currently open endpoints
//   - serialhub_running: whether the forwarding loop is running
//
// The exposition endpoint is optional: Serve starts a promhttp listener only
// when a metrics address is configured.
package monitoring
