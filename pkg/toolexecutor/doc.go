// Package toolexecutor registers agent tools, validates their parameters
// against generated JSON Schemas, and executes them with timeouts.
//
// Invariants:
// - Every registered tool has a schema; parameters are validated before the handler runs.
// - Declared parameter defaults are applied before validation.
// - Handler output larger than 10KB is truncated, never dropped.
package toolexecutor
