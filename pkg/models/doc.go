// Package models defines the blog's domain entities and the record shapes
// shared by both storage backends.
//
// The entities are designed to store identically in PostgreSQL and
// SurrealDB: one entity written to both backends must read back the same
// from either, timestamps included, so the stores can be compared
// field-for-field during migration.
//
//   - [Post]: a blog post with title, content and author. Deleting a post
//     removes its comments with it.
//   - [Comment]: a reader comment attached to one post. The attachment is
//     permanent; a comment never moves to another post.
//   - [WriteOutcome]: the ledger record of one dual-write attempt, carrying
//     a [BackendResult] per backend. [WriteOutcome.Consistent] says whether
//     the write left both stores agreeing; [EntityRef] names the entity a
//     ledger row is about.
//
// # Typed IDs
//
// [PostID] and [CommentID] wrap UUIDs that know their table at compile
// time. In PostgreSQL they store as plain uuid columns through
// driver.Valuer and sql.Scanner; in SurrealDB they marshal to and from
// record IDs through custom CBOR encoding, so the same struct round-trips
// both backends without conversion code at the call sites.
package models
