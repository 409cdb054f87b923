// Package surreal implements the blog's secondary store on SurrealDB using
// native SurrealQL over the WebSocket RPC connection.
//
// The store is wired with the surrealcbor codec so time.Time and the typed
// record IDs in [github.com/Youssef-Hossam5/Blog-app/pkg/models] marshal to
// SurrealDB's native datetime and RecordID forms. All queries are
// parameterized ($param); user-provided values never reach a query through
// string interpolation.
//
// Sorting and aggregation are pushed into SurrealQL (ORDER BY, GROUP BY,
// count()), mirroring what the PostgreSQL store does in SQL, so the two
// backends return comparable results during migration. Writes store the
// field values they are given: entity timestamps are managed by the caller,
// which is what keeps a replicated row byte-for-byte comparable with the
// authority's copy.
package surreal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// Store implements store.Backend on SurrealDB.
type Store struct {
	db *surrealdb.DB
}

var _ store.Backend = (*Store)(nil)
var _ store.Retirer = (*Store)(nil)

// NewStore connects to SurrealDB over WebSocket and selects the given
// namespace and database. The connection is configured with the surrealcbor
// codec; without it time.Time values and typed IDs do not round-trip in the
// format SurrealDB expects.
func NewStore(ctx context.Context, wsURL, namespace, database, username, password string) (*Store, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse surrealdb url: %w: %v", store.ErrInvalid, err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb: %w: %v", store.ErrUnavailable, err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("surrealdb signin: %w: %v", store.ErrUnavailable, err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("surrealdb use %s/%s: %w: %v", namespace, database, store.ErrUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Migrate is a no-op: SurrealDB creates tables implicitly on first insert,
// and this store relies on that schemaless behavior.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

// Close closes the WebSocket connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// Ping runs a trivial query to verify the connection is live.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[int](ctx, s.db, "RETURN 1", nil); err != nil {
		return fmt.Errorf("ping surrealdb: %w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// Post operations

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		post.ID = models.NewPostID()
	}
	fillPostTimestamps(post)

	if _, err := surrealdb.Create[models.Post](ctx, s.db, "posts", post); err != nil {
		return mapErr(fmt.Sprintf("create post %s", post.ID), err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id models.PostID) (*models.Post, error) {
	post, err := surrealdb.Select[models.Post](ctx, s.db, id.RecordID())
	if err != nil {
		return nil, mapErr(fmt.Sprintf("get post %s", id), err)
	}
	if post == nil || post.ID.IsZero() {
		return nil, fmt.Errorf("get post %s: %w", id, store.ErrNotFound)
	}
	return post, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	if _, err := s.GetPost(ctx, post.ID); err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if _, err := surrealdb.Update[models.Post](ctx, s.db, post.ID.RecordID(), post); err != nil {
		return mapErr(fmt.Sprintf("update post %s", post.ID), err)
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id models.PostID) error {
	if _, err := s.GetPost(ctx, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if _, err := surrealdb.Delete[models.Post](ctx, s.db, id.RecordID()); err != nil {
		return mapErr(fmt.Sprintf("delete post %s", id), err)
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, sortSpec store.SortSpec) ([]*models.Post, error) {
	var query string
	switch sortSpec {
	case store.ByCreatedAtDesc:
		query = "SELECT * FROM posts ORDER BY created_at DESC"
	case store.ByTitleAlphaCI:
		// ORDER BY only takes field names, so the case-folded key is
		// projected as an extra field the decoder ignores.
		query = "SELECT *, string::lowercase(title) AS title_ci FROM posts ORDER BY title_ci ASC"
	default:
		return nil, fmt.Errorf("%w: unknown sort spec %q", store.ErrInvalid, sortSpec)
	}

	result, err := surrealdb.Query[[]models.Post](ctx, s.db, query, nil)
	if err != nil {
		return nil, mapErr("list posts", err)
	}

	var posts []*models.Post
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			posts = append(posts, &(*result)[0].Result[i])
		}
	}
	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context) (int64, error) {
	return s.countTable(ctx, "posts")
}

func (s *Store) CountPostsByAuthor(ctx context.Context) (map[string]int64, error) {
	query := "SELECT author, count() AS count FROM posts GROUP BY author"
	result, err := surrealdb.Query[[]struct {
		Author string `json:"author"`
		Count  int64  `json:"count"`
	}](ctx, s.db, query, nil)
	if err != nil {
		return nil, mapErr("count posts by author", err)
	}

	counts := make(map[string]int64)
	if result != nil && len(*result) > 0 {
		for _, row := range (*result)[0].Result {
			counts[row.Author] = row.Count
		}
	}
	return counts, nil
}

// Comment operations

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID.IsZero() {
		comment.ID = models.NewCommentID()
	}
	fillCommentTimestamps(comment)

	if _, err := surrealdb.Create[models.Comment](ctx, s.db, "comments", comment); err != nil {
		return mapErr(fmt.Sprintf("create comment %s", comment.ID), err)
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, id models.CommentID) (*models.Comment, error) {
	comment, err := surrealdb.Select[models.Comment](ctx, s.db, id.RecordID())
	if err != nil {
		return nil, mapErr(fmt.Sprintf("get comment %s", id), err)
	}
	if comment == nil || comment.ID.IsZero() {
		return nil, fmt.Errorf("get comment %s: %w", id, store.ErrNotFound)
	}
	return comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, comment *models.Comment) error {
	current, err := s.GetComment(ctx, comment.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	// post_id is immutable; the stored parent wins over whatever the caller
	// passed in.
	comment.PostID = current.PostID

	if _, err := surrealdb.Update[models.Comment](ctx, s.db, comment.ID.RecordID(), comment); err != nil {
		return mapErr(fmt.Sprintf("update comment %s", comment.ID), err)
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id models.CommentID) error {
	if _, err := s.GetComment(ctx, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if _, err := surrealdb.Delete[models.Comment](ctx, s.db, id.RecordID()); err != nil {
		return mapErr(fmt.Sprintf("delete comment %s", id), err)
	}
	return nil
}

func (s *Store) ListComments(ctx context.Context, postID models.PostID) ([]*models.Comment, error) {
	query := "SELECT * FROM comments WHERE post_id = $post_id ORDER BY created_at DESC"
	vars := map[string]any{
		"post_id": postID,
	}
	result, err := surrealdb.Query[[]models.Comment](ctx, s.db, query, vars)
	if err != nil {
		return nil, mapErr("list comments", err)
	}

	var comments []*models.Comment
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			comments = append(comments, &(*result)[0].Result[i])
		}
	}
	return comments, nil
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID models.PostID) error {
	query := "DELETE comments WHERE post_id = $post_id"
	vars := map[string]any{
		"post_id": postID,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, vars); err != nil {
		return mapErr(fmt.Sprintf("delete comments of post %s", postID), err)
	}
	return nil
}

func (s *Store) CountComments(ctx context.Context) (int64, error) {
	return s.countTable(ctx, "comments")
}

// DropAll removes all blog records so the store can be re-seeded or retired.
func (s *Store) DropAll(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, "REMOVE TABLE IF EXISTS comments; REMOVE TABLE IF EXISTS posts", nil); err != nil {
		return mapErr("drop blog tables", err)
	}
	return nil
}

func (s *Store) countTable(ctx context.Context, table string) (int64, error) {
	// Table names come from the two callers above, never from user input.
	query := fmt.Sprintf("SELECT count() AS count FROM %s GROUP ALL", table)
	result, err := surrealdb.Query[[]struct {
		Count int64 `json:"count"`
	}](ctx, s.db, query, nil)
	if err != nil {
		return 0, mapErr(fmt.Sprintf("count %s", table), err)
	}
	// GROUP ALL over an empty table yields no rows.
	if result == nil || len(*result) == 0 || len((*result)[0].Result) == 0 {
		return 0, nil
	}
	return (*result)[0].Result[0].Count, nil
}

func fillPostTimestamps(post *models.Post) {
	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = now
	}
}

func fillCommentTimestamps(comment *models.Comment) {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
}

// mapErr translates driver errors into the store taxonomy. The driver
// reports a missing record for Select as a decode failure rather than a
// typed error, so detection is by message.
func mapErr(op string, err error) error {
	switch {
	case isNotFound(err):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	case isConflict(err):
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}

func isConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}
