// Package store provides SQLite-backed durable storage for stagehand state:
// run records, the idempotency index, approval records partitioned by state,
// the completed-run audit log, the revision-request queue, per-tool
// configuration markers, and the feedback log.
//
// Two contracts matter more than the medium and are upheld by every method:
//
//   - per-record writes are atomic: a reader sees the old record or the new
//     one, never a torn write (SaveRun upserts the whole document in one
//     statement), and
//   - relocating an approval record between state partitions is atomic: the
//     id is never absent from all partitions nor present in two (the
//     partition is a CHECK-constrained column updated together with the
//     record body in a single transaction).
//
// The idempotency index uses INSERT ... ON CONFLICT DO NOTHING so two
// concurrent callers racing to register the same key converge on a single
// winning run id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
