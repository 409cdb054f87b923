// Package blogapp provides the application logic for a blog platform that is
// migrating its persistence from PostgreSQL to SurrealDB without downtime.
//
// The package wires the two stores, the reconciliation ledger and the
// dual-write machinery into one application facade, and hosts the operator
// CLI built on top of it. The facade is the only layer that knows which
// concrete backends are in play: PostgreSQL as the primary, SurrealDB as the
// secondary, or two in-memory stores when [Config.MemoryOnly] is set.
// Everything below it works against
// [github.com/Youssef-Hossam5/Blog-app/pkg/store.Backend].
//
// # Getting Started
//
// The application provides a command-line interface for serving content
// operations and driving the migration. For argument handling see [Parse];
// for command dispatch see [Main].
//
// The migration progresses through three phases, advanced one step at a
// time and rolled back freely:
//
//  1. dual_write_primary_read: every write lands on both stores with the
//     primary as the authority; reads come from the primary.
//  2. dual_write_secondary_read: writes unchanged; reads come from the
//     secondary with a transparent fallback to the primary when the
//     secondary is unreachable.
//  3. secondary_only: the secondary serves alone and the primary may be
//     retired.
//
// The cutover to secondary_only is gated on the most recent bulk migration
// reporting matching entity counts in both stores.
//
// # Prerequisites
//
//   - Go 1.23+
//   - PostgreSQL reachable via BLOGAPP_POSTGRES_DSN
//   - SurrealDB reachable via BLOGAPP_SURREALDB_URL
//
// Neither database is needed with -memory-only, which runs the full
// lifecycle against two in-process stores.
//
// # Configuration
//
// Configuration comes from BLOGAPP_* environment variables (see [Config])
// and may be overridden per invocation by flags:
//
//	BLOGAPP_POSTGRES_DSN     primary store DSN
//	BLOGAPP_SURREALDB_URL    secondary store WebSocket URL
//	BLOGAPP_SURREALDB_NS     SurrealDB namespace
//	BLOGAPP_SURREALDB_DB     SurrealDB database
//	BLOGAPP_SURREALDB_USER   SurrealDB user
//	BLOGAPP_SURREALDB_PASS   SurrealDB password
//	BLOGAPP_PHASE            starting migration phase
//	BLOGAPP_BACKEND_TIMEOUT  per-call backend timeout
//	BLOGAPP_MIGRATE_WORKERS  concurrent copies during bulk migration
//	BLOGAPP_MEMORY_ONLY      use two in-memory stores
//	BLOGAPP_LOG_LEVEL        zerolog level name
//	BLOGAPP_PRETTY_LOGS      human-readable log output
//
// # Basic Usage
//
//	# Create or update the schema on both stores
//	blogapp setup
//
//	# Copy all posts and comments from the primary into the secondary
//	blogapp migrate
//
//	# Inspect and advance the migration phase
//	blogapp phase show
//	blogapp phase advance dual_write_secondary_read
//	blogapp phase advance secondary_only
//
//	# Roll back to an earlier phase in an emergency
//	blogapp phase rollback dual_write_primary_read
//
//	# Repair entities the ledger reports divergent
//	blogapp -since 2026-08-01T00:00:00Z reconcile
//
//	# Compare both stores' entity counts
//	blogapp stats
//
//	# After cutover, drop the primary's blog tables
//	blogapp -confirm primary retire
//
//	# Try the whole lifecycle without any database running
//	blogapp -memory-only -pretty migrate
package blogapp
