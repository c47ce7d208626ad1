// Package coordinator owns the cached node snapshot and the refresh cycle.
//
// A refresh cycle reconnects if needed, fetches the node list, normalizes
// every node independently, and swaps in a new params.Snapshot only when at
// least one node survived. A failed cycle keeps the previous snapshot live
// and is recorded in LastUpdateSuccess and LastError.
//
// Cycles never overlap. Refresh calls made while a cycle is in flight join
// that cycle and receive its result.
//
//	c := coordinator.New(api, coordinator.Options{Interval: 30 * time.Second})
//	if err := c.FirstRefresh(ctx); err != nil {
//	    return err // ErrAuthFailed or ErrNotReady
//	}
//	c.Start()
//	defer c.Stop()
//
// Readers call Snapshot() and always see a fully built snapshot.
package coordinator
