// Package cmd implements the command-line interface of itemstore.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting a store and exposing its metrics and health
//   - bench: Benchmarks for the id index implementations
//   - xid: Commands for creating and inspecting transaction ids
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See itemstore -help for a list of all commands.
package cmd
