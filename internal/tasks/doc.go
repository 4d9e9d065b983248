// Package tasks orchestrates long-running list operations on top of the HTTP
// client and the realtime session.
//
// # Tracking
//
// A [Tracker] keeps one list in sync for either its owner or a shopkeeper:
//
//  1. [Tracker.Load] fetches the list (owner endpoints with a list id, or the
//     public share endpoint with a share token)
//  2. It subscribes through the realtime session and routes every inbound
//     event into a reconcile.View
//  3. Mutations ([Tracker.CycleItem], [Tracker.SetItemStatus],
//     [Tracker.CompleteList], [Tracker.AcceptShare]) go over HTTP and patch the
//     view with the server's response
//
// A revoked share keeps the last state visible; mutations then fail with
// shared.ErrShareRevoked.
//
// Every applied change is published on [Tracker.Updates]. Sends never block:
// when the reader falls behind, updates are dropped and [Tracker.Snapshot]
// still has the latest state.
//
// # Export
//
// [ExportLists] writes many lists to disk with a rate limited fetcher feeding a
// worker pool, then records the outcome in a manifest.
//
// # Progress Reporting
//
// [ProgressUpdate] carries phase, step counters and a message. Updates use
// select with default to prevent blocking.
package tasks
