// Package discovery advertises and finds bridges on the local network.
//
// A running bridge registers a "_multicontroller._tcp" mDNS service with
// TXT records naming the entry it serves, the integration version, the node
// count, whether the API requires a token, and the API path:
//
//	entry=4b1c...  version=0.0.6  nodes=2  auth=off  path=/api/v1
//
// Scanner browses for those services. Bridges without an address are
// ignored.
//
// # Usage
//
//	ad, err := discovery.Advertise(discovery.Advertisement{
//	    Instance: "Living Room", Port: 8765, EntryID: id, Version: "0.0.6",
//	})
//	defer ad.Shutdown()
//
//	bridges, err := discovery.NewScanner().Scan(ctx)
package discovery
