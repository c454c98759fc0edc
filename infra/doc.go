// Package infra contains technical adapters: the WebSocket transport, the
// MQTT event mirror, metrics exporters, Sentry monitoring and the zerolog
// logger. These packages depend only on the interfaces defined in the core
// packages.
package infra
