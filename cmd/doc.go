// Package cmd implements the command-line interface for the cedar embedded
// key-value store. It provides a hierarchical command structure for
// inspecting and mutating a store directory.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for store operations (get, set, push, add, compact, etc.)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See cedar -help for a list of all commands.
package cmd
