// Package queue implements a durable, crash-safe work queue on top of SQLite.
//
// Producers insert opaque payloads with Put, consumers claim them exclusively
// with Pop, then acknowledge with Done or MarkFailed; Retry returns a message
// to the ready pool. Each named queue is an independent namespace (one table)
// inside a shared Store, so any number of queues can coexist in one database
// file and any number of processes can share it.
//
// Durability and atomicity are delegated to SQLite; this package owns the
// message state machine, the time-ordered identifier scheme that doubles as
// the FIFO ordering key, the atomic claim protocol, and capacity enforcement
// at insert time. Claim ordering is ascending message identifier, which
// approximates insertion order across processes modulo clock skew.
//
// The package is a passive library: it imposes no scheduler, performs no
// automatic retries beyond transient SQLITE_BUSY backoff, and never holds a
// transaction open across calls.
package queue
