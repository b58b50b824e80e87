// Package infra contains technical adapters: MILP solver backends, MQTT
// plan publication, metrics exporters and the zerolog logger. These
// packages depend only on the interfaces defined in the core packages.
package infra
