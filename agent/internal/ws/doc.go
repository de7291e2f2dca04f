// Package ws implements the WebSocket hub for obs-agent.
//
// Hub manages a set of connected clients and pushes the delivery-stance State
// to all of them whenever the engine completes a pass, plus a keepalive
// re-send of the latest State on a configurable interval.
//
// New(reader, interval) creates a Hub. Wire Hub.Publish to
// compute.Engine.Subscribe so every pass reaches the clients.
// Hub.Run(ctx) starts the keepalive ticker — blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// State immediately on connect, then streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "state",
//	  "data":  { /* same schema as GET /api/v1/state */ }
//	}
//
// Each client gets a random id used only in log lines. The upgrader accepts
// all origins. The endpoint is mounted at /ws/stream by the agent.
package ws
