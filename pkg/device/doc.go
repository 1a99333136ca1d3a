// Package device implements the durable registry of client devices.
//
// A device record is keyed by an opaque device key shared with the caller
// and independent of the underlying platform token. iOS records carry a
// mutable APNs token; Android records carry a PEM-encoded RSA public key
// set at registration and immutable thereafter. Exactly one of the two is
// meaningfully populated, determined by the device type.
//
// Records persist through a kv.Store and outlive the process. The registry
// keeps a live device counter incrementally because the backing store has
// no efficient full scan.
//
//	registry := device.NewRegistry(store, device.WithAllowNewDevice(true))
//
//	dev, err := registry.Register(ctx, device.RegisterParams{
//		Token: apnsToken,
//	})
package device
