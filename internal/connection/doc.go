// Package connection tracks live WebSocket clients and fans messages out
// to them.
//
// Each registered Connection has its own outbox and writer goroutine, so a
// slow or dead client only ever blocks itself. Broadcast writes to every
// client concurrently, collects the failures and removes those clients
// once the pass is complete:
//
//	reg := connection.NewRegistry(connection.WithHeartbeatInterval(30 * time.Second))
//	c, err := reg.Connect(ctx, connection.NewWSConn(ws, opts))
//	reg.Broadcast(ctx, connection.StateUpdate(view, time.Now()))
//	reg.Disconnect(c.ID())
//
// A heartbeat loop pings every client while at least one is connected and
// exits when the registry empties. Delivery is best effort and at most once.
package connection
