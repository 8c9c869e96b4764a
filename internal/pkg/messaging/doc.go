// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on Publisher and Consumer only, so the broker (NATS,
// Kafka, NSQ, or the in-process Memory broker used by tests and single-node
// setups) is a configuration choice.
package messaging
