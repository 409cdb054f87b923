// Package postgres implements the blog's primary store on PostgreSQL using
// GORM.
//
// This is the pre-migration system of record. GORM handles SQL generation,
// connection pooling and schema migration (AutoMigrate); sorting and
// aggregation run inside PostgreSQL (ORDER BY, GROUP BY), never in Go. The
// package also hosts [Ledger], the durable reconciliation ledger, which
// appends write outcomes to a write_outcomes table on the same connection.
//
// Driver and GORM errors are translated onto the
// [github.com/Youssef-Hossam5/Blog-app/pkg/store] taxonomy before they leave
// this package: record-not-found becomes ErrNotFound, unique violations
// become ErrConflict, constraint violations become ErrInvalid, and transport
// errors become ErrUnavailable. Nothing here retries; retry policy belongs to
// the caller.
package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// Store implements store.Backend on PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ store.Backend = (*Store)(nil)
var _ store.Retirer = (*Store)(nil)

// NewStore connects to PostgreSQL and returns the store. TranslateError is
// enabled so constraint violations surface as typed GORM errors instead of
// raw pgconn errors.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w: %v", store.ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

// Migrate creates or updates the posts, comments and write_outcomes tables.
// AutoMigrate only adds schema elements, so it is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.Post{},
		&models.Comment{},
		&models.WriteOutcome{},
	)
	if err != nil {
		return mapErr("migrate schema", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("ping postgres: %w: %v", store.ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mapErr("ping postgres", err)
	}
	return nil
}

// Post operations

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return mapErr("create post", err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id models.PostID) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, mapErr(fmt.Sprintf("get post %s", id), err)
	}
	return &post, nil
}

// UpdatePost writes the given field values verbatim (UpdateColumns, not
// Updates) so a write replayed on this store keeps the authority's
// updated_at instead of being re-stamped locally.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	tx := s.db.WithContext(ctx).Model(post).
		Select("title", "content", "author", "updated_at").
		UpdateColumns(post)
	if tx.Error != nil {
		return mapErr(fmt.Sprintf("update post %s", post.ID), tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("update post %s: %w", post.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id models.PostID) error {
	tx := s.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", id)
	if tx.Error != nil {
		return mapErr(fmt.Sprintf("delete post %s", id), tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("delete post %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, sort store.SortSpec) ([]*models.Post, error) {
	order, err := orderClause(sort)
	if err != nil {
		return nil, err
	}
	var posts []*models.Post
	if err := s.db.WithContext(ctx).Order(order).Find(&posts).Error; err != nil {
		return nil, mapErr("list posts", err)
	}
	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, mapErr("count posts", err)
	}
	return n, nil
}

func (s *Store) CountPostsByAuthor(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Author string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("author, count(*) as count").
		Group("author").
		Scan(&rows).Error
	if err != nil {
		return nil, mapErr("count posts by author", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Author] = r.Count
	}
	return counts, nil
}

// Comment operations

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return mapErr("create comment", err)
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, id models.CommentID) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, mapErr(fmt.Sprintf("get comment %s", id), err)
	}
	return &comment, nil
}

// UpdateComment saves commenter and body only; post_id is immutable and is
// deliberately excluded from the column list.
func (s *Store) UpdateComment(ctx context.Context, comment *models.Comment) error {
	tx := s.db.WithContext(ctx).Model(comment).
		Select("commenter", "body").
		UpdateColumns(comment)
	if tx.Error != nil {
		return mapErr(fmt.Sprintf("update comment %s", comment.ID), tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("update comment %s: %w", comment.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id models.CommentID) error {
	tx := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id)
	if tx.Error != nil {
		return mapErr(fmt.Sprintf("delete comment %s", id), tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("delete comment %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListComments(ctx context.Context, postID models.PostID) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, mapErr("list comments", err)
	}
	return comments, nil
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID models.PostID) error {
	err := s.db.WithContext(ctx).Delete(&models.Comment{}, "post_id = ?", postID).Error
	if err != nil {
		return mapErr(fmt.Sprintf("delete comments of post %s", postID), err)
	}
	return nil
}

func (s *Store) CountComments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Count(&n).Error; err != nil {
		return 0, mapErr("count comments", err)
	}
	return n, nil
}

// DropAll permanently deletes the blog tables. Used to retire this store
// after cutover; the write_outcomes ledger table is kept as migration
// history.
func (s *Store) DropAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Migrator().DropTable(
		&models.Comment{},
		&models.Post{},
	)
	if err != nil {
		return mapErr("drop blog tables", err)
	}
	return nil
}

func orderClause(sort store.SortSpec) (string, error) {
	switch sort {
	case store.ByCreatedAtDesc:
		return "created_at DESC", nil
	case store.ByTitleAlphaCI:
		return "lower(title) ASC", nil
	default:
		return "", fmt.Errorf("%w: unknown sort spec %q", store.ErrInvalid, sort)
	}
}

// mapErr translates GORM and transport errors into the store taxonomy,
// keeping the cause in the message.
func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%s: %w: %v", op, store.ErrInvalid, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case isConnErr(err):
		return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isConnErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
