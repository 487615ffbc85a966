// Package scanner provides the background scanners of the store.
//
// A scanner (Periodic) runs a pass function at a fixed interval while the
// store is started. The store starts scanners after everything else and stops
// them first. Each pass is timed in a go-metrics registry under
// "scanner.<kind>.pass".
//
// Schedule is a deadline queue keyed by item id. ExpiryPass and DelayPass turn
// a schedule into the pass of the expiry scanner and the delivery-delay scanner:
// items whose deadline has passed are looked up in the store and unregistered
// (expiry) or handed to a delivery function (delivery delay).
package scanner
