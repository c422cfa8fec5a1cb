// Package socket implements the underlying socket primitive the supervisor
// builds on.
//
// The gorilla/websocket-backed connection:
//   - Delivers inbound frames and connection errors on channels
//   - Serializes writes with a write deadline
//   - Answers server pings and sends keepalive pings of its own
//   - Reports a stale connection when the control channel goes quiet
//
// Both channels are closed when the connection is gone, so a consumer can
// range over them without a separate shutdown signal. The Dialer type is the
// seam tests use to substitute in-process fakes.
package socket
