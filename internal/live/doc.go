// Package live turns one-shot snapshot queries into live query streams.
//
// A Tracker records which tables changed. Writers call Notify after their
// transaction commits; Observe re-runs its query whenever one of the
// tables it watches is notified and hands the new snapshot to the
// subscriber.
//
// Guarantees:
//   - the first value is the current snapshot, taken after the watch is
//     registered, so no commit can fall between the two
//   - a slow subscriber never blocks writers; pending invalidations
//     coalesce and the subscriber receives the latest snapshot next
//   - snapshots arrive in commit order because every query runs after
//     the notification of the commit it must reflect
//   - closing a subscription only stops delivery
package live
