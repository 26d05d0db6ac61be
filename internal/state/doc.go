// Package state persists restore progress as a JSON ledger on disk.
//
// The ledger is the sole source of truth for resumption: every remote call the
// restore makes is recorded through Tracker.Record before the next call is
// issued, so an interrupted run can continue at the exact repository, issue,
// comment, or pull request it stopped at without querying the target again.
// Repository statuses move strictly forward and writes replace the ledger file
// atomically through a rename.
package state
