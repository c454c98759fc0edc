// Package mqtt mirrors vending machine lifecycle events to an MQTT broker
// using Eclipse Paho. Events are published as JSON to <prefix>/events/<kind>;
// the machine state is kept retained on <prefix>/state and broker
// availability on <prefix>/availability.
package mqtt
