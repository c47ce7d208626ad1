// Package integration wires one configured entry together: the RainMaker
// adapter, the poll coordinator and the derived entities.
//
//	rt, err := integration.Setup(ctx, id, entry, password, integration.Options{})
//	if err != nil {
//	    return err
//	}
//	rt.Start()
//	defer rt.Unload()
//
// ValidateInput and AddEntry implement the account configuration flow and
// report failures as FlowError keys: auth, cannot_connect and
// already_configured.
package integration
