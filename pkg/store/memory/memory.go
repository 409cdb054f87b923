// Package memory implements the store contract on in-process maps.
//
// It exists for two reasons: running the app locally without PostgreSQL or
// SurrealDB, and driving the dual-write, routing and migration tests with
// deterministic failures. Fail, FailAll and Heal inject errors per operation
// or store-wide; CallCount exposes how often each operation was attempted so
// tests can assert, for example, that the secondary was never reached after
// an authority failure.
//
// The map is the database engine here, so sorting and aggregation happen in
// Go. Ordering is made deterministic by breaking timestamp and title ties on
// the entity ID.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// Store implements store.Backend on mutex-protected maps.
type Store struct {
	mu       sync.Mutex
	posts    map[models.PostID]models.Post
	comments map[models.CommentID]models.Comment

	failAll  error
	failures map[string]error
	calls    map[string]int
}

var _ store.Backend = (*Store)(nil)
var _ store.Retirer = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		posts:    make(map[models.PostID]models.Post),
		comments: make(map[models.CommentID]models.Comment),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Fail makes the named operation (method name, e.g. "CreatePost") return err
// until Heal is called.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// FailAll simulates a full outage: every operation returns err until Heal.
func (s *Store) FailAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = err
}

// Heal clears all injected failures.
func (s *Store) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = nil
	s.failures = make(map[string]error)
}

// CallCount returns how many times the named operation was invoked,
// including invocations that failed.
func (s *Store) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// begin counts the call and returns any injected or context error. Callers
// hold s.mu.
func (s *Store) begin(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.failAll != nil {
		return fmt.Errorf("%s: %w", op, s.failAll)
	}
	if err := s.failures[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(ctx, "Migrate")
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(ctx, "Ping")
}

// Post operations

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "CreatePost"); err != nil {
		return err
	}
	if post.ID.IsZero() {
		post.ID = models.NewPostID()
	}
	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = now
	}
	if _, exists := s.posts[post.ID]; exists {
		return fmt.Errorf("create post %s: %w", post.ID, store.ErrConflict)
	}
	s.posts[post.ID] = *post
	return nil
}

func (s *Store) GetPost(ctx context.Context, id models.PostID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "GetPost"); err != nil {
		return nil, err
	}
	post, exists := s.posts[id]
	if !exists {
		return nil, fmt.Errorf("get post %s: %w", id, store.ErrNotFound)
	}
	return &post, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdatePost"); err != nil {
		return err
	}
	current, exists := s.posts[post.ID]
	if !exists {
		return fmt.Errorf("update post %s: %w", post.ID, store.ErrNotFound)
	}
	current.Title = post.Title
	current.Content = post.Content
	current.Author = post.Author
	current.UpdatedAt = post.UpdatedAt
	s.posts[post.ID] = current
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id models.PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeletePost"); err != nil {
		return err
	}
	if _, exists := s.posts[id]; !exists {
		return fmt.Errorf("delete post %s: %w", id, store.ErrNotFound)
	}
	delete(s.posts, id)
	return nil
}

func (s *Store) ListPosts(ctx context.Context, sortSpec store.SortSpec) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "ListPosts"); err != nil {
		return nil, err
	}

	posts := make([]*models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		p := post
		posts = append(posts, &p)
	}

	switch sortSpec {
	case store.ByCreatedAtDesc:
		sort.Slice(posts, func(i, j int) bool {
			if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
				return posts[i].CreatedAt.After(posts[j].CreatedAt)
			}
			return posts[i].ID.String() < posts[j].ID.String()
		})
	case store.ByTitleAlphaCI:
		sort.Slice(posts, func(i, j int) bool {
			ti, tj := strings.ToLower(posts[i].Title), strings.ToLower(posts[j].Title)
			if ti != tj {
				return ti < tj
			}
			return posts[i].ID.String() < posts[j].ID.String()
		})
	default:
		return nil, fmt.Errorf("%w: unknown sort spec %q", store.ErrInvalid, sortSpec)
	}
	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "CountPosts"); err != nil {
		return 0, err
	}
	return int64(len(s.posts)), nil
}

func (s *Store) CountPostsByAuthor(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "CountPostsByAuthor"); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, post := range s.posts {
		counts[post.Author]++
	}
	return counts, nil
}

// Comment operations

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "CreateComment"); err != nil {
		return err
	}
	if comment.ID.IsZero() {
		comment.ID = models.NewCommentID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	if _, exists := s.comments[comment.ID]; exists {
		return fmt.Errorf("create comment %s: %w", comment.ID, store.ErrConflict)
	}
	s.comments[comment.ID] = *comment
	return nil
}

func (s *Store) GetComment(ctx context.Context, id models.CommentID) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "GetComment"); err != nil {
		return nil, err
	}
	comment, exists := s.comments[id]
	if !exists {
		return nil, fmt.Errorf("get comment %s: %w", id, store.ErrNotFound)
	}
	return &comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdateComment"); err != nil {
		return err
	}
	current, exists := s.comments[comment.ID]
	if !exists {
		return fmt.Errorf("update comment %s: %w", comment.ID, store.ErrNotFound)
	}
	// post_id never changes after creation.
	current.Commenter = comment.Commenter
	current.Body = comment.Body
	s.comments[comment.ID] = current
	comment.PostID = current.PostID
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id models.CommentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteComment"); err != nil {
		return err
	}
	if _, exists := s.comments[id]; !exists {
		return fmt.Errorf("delete comment %s: %w", id, store.ErrNotFound)
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) ListComments(ctx context.Context, postID models.PostID) ([]*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "ListComments"); err != nil {
		return nil, err
	}

	var comments []*models.Comment
	for _, comment := range s.comments {
		if comment.PostID == postID {
			c := comment
			comments = append(comments, &c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if !comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].CreatedAt.After(comments[j].CreatedAt)
		}
		return comments[i].ID.String() < comments[j].ID.String()
	})
	return comments, nil
}

func (s *Store) DeleteCommentsByPost(ctx context.Context, postID models.PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteCommentsByPost"); err != nil {
		return err
	}
	for id, comment := range s.comments {
		if comment.PostID == postID {
			delete(s.comments, id)
		}
	}
	return nil
}

func (s *Store) CountComments(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "CountComments"); err != nil {
		return 0, err
	}
	return int64(len(s.comments)), nil
}

// DropAll clears both tables.
func (s *Store) DropAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DropAll"); err != nil {
		return err
	}
	s.posts = make(map[models.PostID]models.Post)
	s.comments = make(map[models.CommentID]models.Comment)
	return nil
}
