// Package events defines the vending lifecycle events emitted on the event bus.
//
// Available event types:
//   - VendStarted: a vend command was accepted
//   - VendRejected: a vend command was refused (busy or invalid)
//   - VendCompleted: the dispensing delay elapsed
//   - ObserverConnected / ObserverDisconnected: registry membership changes
//   - DeliveryFailed: a broadcast could not reach an observer
package events
