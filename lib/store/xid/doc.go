// Package xid parses and formats the identifiers of two-phase transactions.
//
// The text form is "<formatId>:<gtrid>:<bqual>" where formatId is a signed 32 bit
// decimal number and gtrid/bqual are hex encoded byte strings (gtrid 1-64 bytes,
// bqual 0-64 bytes). Parse is a bounded parser: every length is checked before
// anything is decoded and malformed input is reported as an error wrapping
// ErrMalformed.
package xid
