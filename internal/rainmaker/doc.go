// Package rainmaker talks to the ESP RainMaker cloud API.
//
// It has two layers. Client is a thin HTTP client for the three REST calls
// the bridge needs: login, node listing with full detail, and batch
// parameter writes. API is the adapter the rest of the program uses; it
// keeps the session, knows the parameter service namespace, and reports
// every failure as a typed *APIError.
//
// # Error Taxonomy
//
//   - Auth: credentials rejected. Fatal to setup, never retried.
//   - Connection: transport failure. Setup reports "not ready"; polling
//     tries again on the next cycle.
//   - Format: the response does not have a node_details list.
//   - Remote: a write was rejected, or the transport failed during a write.
//
// # Usage
//
//	api := rainmaker.NewAPI(host, username, password)
//	if err := api.Connect(ctx); err != nil {
//	    return err
//	}
//	defer api.Close()
//
//	list, err := api.ListNodes(ctx)
//	...
//	err = api.SetParam(ctx, "node-id", "temp_setpoint", 21.5)
//
// Node entries are returned undecoded (json.RawMessage); shaping them into
// typed parameters is the job of package params.
package rainmaker
