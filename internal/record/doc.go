// Package record defines the durable record types shared by the run engine,
// the approval lifecycle manager, and the store: runs with their per-stage
// state, approval records with their append-only event logs, and the
// auxiliary audit, revision-queue, and feedback entries.
//
// Records are persisted as JSON documents. Field names are stable wire
// contracts; changing them is a schema migration.
package record
