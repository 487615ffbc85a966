// Package memory provides an in-memory persistence backend. Tables are
// xsync maps, generators are atomic counters.
package memory
