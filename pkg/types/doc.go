// Package types defines shared Go types used by both the agent and server.
// These are the canonical in-memory representations of the delivery stance:
// the category enums produced by the classifiers and the State record the
// agent engine owns and publishes to its readers.
package types
