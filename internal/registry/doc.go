// Package registry persists registered videos, experiment assignments and
// ingest run summaries in SQLite.
//
// The content sample hash is the only identity key. Registering the same
// hash twice is a no-op, and a video stays in the registry after it has been
// linked to experiments; "unassigned" simply means no link references it.
// Links are many-to-many. Mutations touching one hash are serialized in
// process by a keyed mutex, and SQLITE_BUSY from other processes is retried
// with backoff.
package registry
