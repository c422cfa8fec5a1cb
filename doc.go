// Package wskeep supervises named client-side WebSocket connections.
//
// Each name gets one supervisor that:
//   - Owns the socket handle and drives idle → connecting → connected
//   - Reconnects after a close with a fixed delay when configured
//   - Keeps the latest inbound message and an optional bounded history
//   - Emits a synthetic end-of-transfer notice after inbound silence
//
// Independent consumers read synchronous snapshots through the Client
// façade and subscribe to per-name change notifications, so many observers
// can track one socket without any of them owning it. No façade call blocks
// on the network.
package wskeep
