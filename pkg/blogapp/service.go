package blogapp

import (
	"context"
	"time"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/dualwrite"
)

// PostFields carries a partial post update; nil fields keep their current
// value.
type PostFields struct {
	Title   *string
	Content *string
	Author  *string
}

// CommentFields carries a partial comment update; nil fields keep their
// current value. The parent post is not here: it never changes.
type CommentFields struct {
	Commenter *string
	Body      *string
}

// CreatePost writes a new post through the dual-write coordinator and
// returns it with identity and timestamps assigned.
func (a *App) CreatePost(ctx context.Context, title, author, content string) (*models.Post, error) {
	post := &models.Post{Title: title, Author: author, Content: content}
	if _, err := a.coord.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost applies a partial update. Current values are resolved against
// the write authority, so an update in a read-from-secondary phase cannot
// resurrect stale replica data.
func (a *App) UpdatePost(ctx context.Context, id models.PostID, fields PostFields) (*models.Post, error) {
	current, err := a.coord.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:      id,
		Title:   resolve(fields.Title, current.Title),
		Content: resolve(fields.Content, current.Content),
		Author:  resolve(fields.Author, current.Author),
	}
	if _, err := a.coord.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post and its comments from both stores.
func (a *App) DeletePost(ctx context.Context, id models.PostID) error {
	_, err := a.coord.DeletePost(ctx, id)
	return err
}

// AddComment attaches a new comment to an existing post.
func (a *App) AddComment(ctx context.Context, postID models.PostID, commenter, body string) (*models.Comment, error) {
	comment := &models.Comment{PostID: postID, Commenter: commenter, Body: body}
	if _, err := a.coord.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// UpdateComment applies a partial update to a comment.
func (a *App) UpdateComment(ctx context.Context, id models.CommentID, fields CommentFields) (*models.Comment, error) {
	current, err := a.coord.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        id,
		PostID:    current.PostID,
		Commenter: resolve(fields.Commenter, current.Commenter),
		Body:      resolve(fields.Body, current.Body),
	}
	if _, err := a.coord.UpdateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a single comment from both stores.
func (a *App) DeleteComment(ctx context.Context, id models.CommentID) error {
	_, err := a.coord.DeleteComment(ctx, id)
	return err
}

// GetPost serves one post from the phase-selected store.
func (a *App) GetPost(ctx context.Context, id models.PostID) (*models.Post, error) {
	post, _, err := a.router.GetPost(ctx, id)
	return post, err
}

// ListPosts serves all posts in the requested order from the phase-selected
// store.
func (a *App) ListPosts(ctx context.Context, sort store.SortSpec) ([]*models.Post, error) {
	posts, _, err := a.router.ListPosts(ctx, sort)
	return posts, err
}

// ListComments serves one post's comments, newest first, from the
// phase-selected store.
func (a *App) ListComments(ctx context.Context, postID models.PostID) ([]*models.Comment, error) {
	comments, _, err := a.router.ListComments(ctx, postID)
	return comments, err
}

// AuthorPostCounts serves the per-author post counts from the phase-selected
// store.
func (a *App) AuthorPostCounts(ctx context.Context) (map[string]int64, error) {
	counts, _, err := a.router.CountPostsByAuthor(ctx)
	return counts, err
}

// RunBulkMigration copies the full data set from the primary into the
// secondary and returns the verified report.
func (a *App) RunBulkMigration(ctx context.Context) (*dualwrite.Report, error) {
	return a.migrator.Run(ctx)
}

// ReconcileDivergent repairs every entity the ledger reports divergent since
// the given time.
func (a *App) ReconcileDivergent(ctx context.Context, since time.Time) (*dualwrite.SweepReport, error) {
	return a.reconciler.Sweep(ctx, since)
}

// GetMigrationPhase returns the current migration phase.
func (a *App) GetMigrationPhase() dualwrite.Phase {
	return a.phases.Current()
}

// AdvanceMigrationPhase moves the migration one phase forward. Entering
// secondary_only requires the last bulk migration to have verified cleanly.
func (a *App) AdvanceMigrationPhase(target dualwrite.Phase) error {
	if err := a.phases.Advance(target); err != nil {
		return err
	}
	a.metrics.SetPhase(target)
	return nil
}

// RollbackMigrationPhase moves the migration back to an earlier phase
// without checks.
func (a *App) RollbackMigrationPhase(target dualwrite.Phase) error {
	if err := a.phases.Rollback(target); err != nil {
		return err
	}
	a.metrics.SetPhase(target)
	return nil
}

// LedgerStats summarizes the reconciliation ledger.
func (a *App) LedgerStats(ctx context.Context) (store.LedgerStats, error) {
	return a.ledger.Stats(ctx)
}

func resolve(field *string, current string) string {
	if field != nil {
		return *field
	}
	return current
}
