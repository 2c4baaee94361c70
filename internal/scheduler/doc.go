// Package scheduler models the host application's main loop.
//
// Work that touches host state (the scene, the bridge server's sockets) must
// run on that loop. A Scheduler accepts two kinds of work: one-shot tasks
// posted to run as soon as possible, and periodic tasks re-armed after each
// run until their Handle is cancelled. Every task runs to completion before
// the next one starts; there is no preemption.
//
// # Ordering
//
// Posted tasks run in the order they were posted, before any periodic task
// due in the same pass. Posting a no-op and waiting for it therefore waits
// for everything posted earlier.
//
// # Failures
//
// A panicking task is logged and recovered. A periodic task that panics is
// cancelled.
package scheduler
