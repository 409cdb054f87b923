// Package store defines the persistence contract shared by the blog's two
// live database backends and its in-memory backend.
//
// The [Backend] interface is the uniform capability surface the dual-write
// layer is built on: insert/update/delete/fetch for the two entity kinds
// ([github.com/Youssef-Hossam5/Blog-app/pkg/models.Post] and
// [github.com/Youssef-Hossam5/Blog-app/pkg/models.Comment]), native sorting
// and aggregation, and a liveness probe. Three implementations exist:
//
//   - postgres.Store: GORM over PostgreSQL, the pre-migration system of record
//   - surreal.Store: the SurrealDB Go driver with the surrealcbor codec, the
//     migration target
//   - memory.Store: an in-process map-backed store used for local development
//     and for deterministic failure injection in tests
//
// The coordination layer depends only on this interface, never on a concrete
// backend type, so each failure kind can be simulated by a test double.
//
// # Contract rules
//
// Backends never retry internally; retry policy belongs to the caller.
// Sorting ([SortSpec]) and aggregation (CountPostsByAuthor) are performed by
// the database engine itself, never by iterating entities in Go. Deleting a
// post does not cascade inside a backend: the coordinator issues the cascade
// as two ordered calls (comments first, then the post) and treats a partial
// cascade as a reconciliation case.
//
// Failures are reported using the sentinel taxonomy in errors.go, wrapped so
// the driver cause is preserved.
package store

import (
	"context"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
)

// SortSpec selects the native ordering a backend applies to ListPosts.
type SortSpec string

const (
	// ByCreatedAtDesc orders posts newest first.
	ByCreatedAtDesc SortSpec = "by_created_at_desc"

	// ByTitleAlphaCI orders posts by title, case-insensitively, ascending:
	// "Apple" sorts before "banana" sorts before "cherry".
	ByTitleAlphaCI SortSpec = "by_title_alpha_ci"
)

// Backend is the capability interface implemented independently by the
// primary and secondary stores. All calls accept a context and are expected
// to honor its deadline; a deadline expiry surfaces as ErrUnavailable to the
// layer above.
type Backend interface {
	// CreatePost persists a new post. When the post's ID is zero the backend
	// assigns one and writes it back into the entity; a non-zero ID (set by
	// the write authority during dual writes, or by the bulk migrator) is
	// stored verbatim. Fails with ErrConflict if the identity already exists,
	// ErrInvalid on constraint violations, ErrUnavailable if the store is
	// unreachable.
	CreatePost(ctx context.Context, post *models.Post) error

	// GetPost returns the post with the given ID, or ErrNotFound.
	GetPost(ctx context.Context, id models.PostID) (*models.Post, error)

	// UpdatePost replaces the stored post keyed by its ID.
	// Fails with ErrNotFound if no such post exists.
	UpdatePost(ctx context.Context, post *models.Post) error

	// DeletePost removes the post only; its comments are removed by a
	// preceding DeleteCommentsByPost call. Fails with ErrNotFound if no such
	// post exists.
	DeletePost(ctx context.Context, id models.PostID) error

	// ListPosts returns all posts in the order selected by sort, computed by
	// the database engine.
	ListPosts(ctx context.Context, sort SortSpec) ([]*models.Post, error)

	// CountPosts returns the total number of posts, computed natively.
	CountPosts(ctx context.Context) (int64, error)

	// CountPostsByAuthor returns post counts grouped by author, computed by
	// the database engine (GROUP BY), never by fetching and counting in Go.
	CountPostsByAuthor(ctx context.Context) (map[string]int64, error)

	// CreateComment persists a new comment, assigning an ID when zero, same
	// identity rules as CreatePost. Parent existence is enforced by the layer
	// above, not here.
	CreateComment(ctx context.Context, comment *models.Comment) error

	// GetComment returns the comment with the given ID, or ErrNotFound.
	GetComment(ctx context.Context, id models.CommentID) (*models.Comment, error)

	// UpdateComment replaces the stored comment keyed by its ID.
	// Fails with ErrNotFound if no such comment exists.
	UpdateComment(ctx context.Context, comment *models.Comment) error

	// DeleteComment removes a single comment.
	// Fails with ErrNotFound if no such comment exists.
	DeleteComment(ctx context.Context, id models.CommentID) error

	// ListComments returns the comments of one post, newest first.
	ListComments(ctx context.Context, postID models.PostID) ([]*models.Comment, error)

	// DeleteCommentsByPost removes every comment of the given post. Removing
	// zero comments is success, not ErrNotFound; the cascade must be safe to
	// run against a post that never had comments.
	DeleteCommentsByPost(ctx context.Context, postID models.PostID) error

	// CountComments returns the total number of comments, computed natively.
	CountComments(ctx context.Context) (int64, error)

	// Ping reports liveness: nil when the store is reachable. It never
	// panics and must be cheap enough to run before a read as a fast-path
	// check.
	Ping(ctx context.Context) error

	// Migrate initializes or updates the store's schema. Idempotent.
	Migrate(ctx context.Context) error

	// Close releases connections. Safe to call more than once.
	Close() error
}

// Retirer is the optional destructive capability used to decommission the
// primary after cutover. Backends that cannot (or should not) drop their blog
// data simply do not implement it; the caller type-asserts.
type Retirer interface {
	// DropAll permanently deletes all blog data held by the store.
	DropAll(ctx context.Context) error
}
