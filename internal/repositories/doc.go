// Package repositories implements SQLite persistence for the offline cache.
//
// Key Implementations:
//   - [SnapshotRepository] : reconciled list state, appended on every update and pruned per list
//   - [ShareTokenRepository] : share tokens remembered per list so a shopkeeper can rejoin
//
// Snapshots are ordered by per-table sequence numbers. The [NextSequence] function atomically
// increments the counter kept in a dedicated sequence table.
package repositories
