// Package store provides the store controller: the component that owns the
// in-memory id index of all stored items and drives the lifecycle of a store.
//
// Key Components:
//
//   - Controller: Resolves 64-bit item ids to their in-memory handles (Link) through
//     one of the index implementations in lib/index. The index is chosen and sized
//     from the configuration on every Start and discarded on every Stop.
//
//   - Lifecycle: Uninitialized -> Stopped -> Starting -> Started and back. Lifecycle
//     operations are serialized, the hot path (Register, Unregister, FindByID) only
//     reads the atomic state and fails with RetCStoreUnavailable outside Started.
//     A failing start records its failures, tears down whatever was started and
//     degrades the health of the controller.
//
//   - Collaborators: The persistence backend (IPersistence), the transaction resolver
//     (ITransactionResolver) and the background scanners (IScanner) are injected
//     through Dependencies. Default implementations are found in the persistence,
//     txn and scanner sub packages.
//
//   - Error System: Every error returned by the controller is an *Error carrying a
//     RetCode, use IsCode or errors.Is to check for a specific code.
//
// Usage:
//
//	c := store.NewController(store.Dependencies{
//		Persistence: persistence.New,
//		Resolver:    txn.Factory,
//		Scanners:    scanner.Factory(nil, nil),
//	})
//	_ = c.Initialize(store.DefaultConfig())
//	if err := c.Start(); err != nil {
//		// c.StartupFailures() holds every failure of the attempt
//	}
//	defer c.Stop()
package store
