// Package protocol defines the JSON messages exchanged with VMC observers.
//
// Every message carries a "type" discriminator. Inbound payloads are decoded
// at the boundary into a closed set of commands:
//   - VendCommand: start dispensing the given items
//   - StatusCommand: query the current state
//   - HealthCommand: liveness probe
//
// Outbound messages are built with the New* constructors so the type field
// always matches the payload shape.
package protocol
