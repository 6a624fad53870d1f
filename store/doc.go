// Package store groups the credential store backends.
//
//   - memory: process-local maps, for tests and single-process tools.
//   - sqlstore: PostgreSQL (pgx) and SQLite (modernc) over database/sql with embedded
//     goose migrations.
//   - redisstore: hashes and sets in Redis with WATCH/MULTI for versioned saves.
//
// Every backend honours the goAccess.Store contract: SaveAccount is conditioned on
// Version, InsertMembership is insert-if-absent, and soft-deleted rows are invisible to
// lookups. storetest holds the shared conformance suite.
package store
