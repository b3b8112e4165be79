// Package reconcile keeps a consumer's view of an account's transaction
// history complete.
//
// The Reconciler:
//   - Subscribes to the account's txid.Hub
//   - Fetches the id range between the last handled id and any newer id it hears of
//   - Polls TransactionsSinceID on an interval as a backstop (unfiltered)
//   - Runs at most one fetch at a time and hands results over in ascending order
package reconcile
