package dualwrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// DefaultCallTimeout bounds each individual backend call a mutation makes.
// A store that cannot answer within it is treated as unavailable.
const DefaultCallTimeout = 3 * time.Second

// Options configures the dual-write components. The zero value is usable:
// default timeout, no-op logger, no metrics.
type Options struct {
	// CallTimeout bounds each backend call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// Workers bounds concurrent entity copies during bulk migration. Zero
	// means DefaultMigrationWorkers.
	Workers int

	// Logger receives structured write/read/migration events.
	Logger zerolog.Logger

	// Metrics receives counters and latencies; nil disables recording.
	Metrics *Metrics
}

func (o Options) timeout() time.Duration {
	if o.CallTimeout <= 0 {
		return DefaultCallTimeout
	}
	return o.CallTimeout
}

// Coordinator applies every mutation to both stores with asymmetric failure
// handling, one store at a time, authority first.
//
// In the dual-write phases the primary holds write authority: if it fails,
// the whole mutation fails with ErrPrimaryUnavailable and the secondary is
// never attempted, so the secondary can never run ahead of the store of
// record. A secondary failure after the authority committed does not fail
// the mutation; it is logged, counted and recorded in the ledger as a
// divergence to reconcile. In PhaseSecondaryOnly the roles reverse and the
// secondary is the sole authority.
//
// Every attempted mutation appends exactly one ledger outcome, success or
// failure. Mutations rejected before any store was touched (validation, a
// missing parent, an unknown ID caught by the authority pre-read) append
// nothing: there is no attempt to account for.
type Coordinator struct {
	primary   store.Backend
	secondary store.Backend
	phases    *Controller
	ledger    store.Ledger
	timeout   time.Duration
	log       zerolog.Logger
	metrics   *Metrics
}

// NewCoordinator wires a coordinator over the two stores. The ledger must
// not be nil; recording outcomes is not optional.
func NewCoordinator(primary, secondary store.Backend, phases *Controller, ledger store.Ledger, opts Options) *Coordinator {
	return &Coordinator{
		primary:   primary,
		secondary: secondary,
		phases:    phases,
		ledger:    ledger,
		timeout:   opts.timeout(),
		log:       opts.Logger.With().Str("component", "coordinator").Logger(),
		metrics:   opts.Metrics,
	}
}

// Receipt is the typed result of one coordinated mutation: which stores were
// attempted and how each fared. Returned on failure too, so callers can see
// how far the mutation got.
type Receipt struct {
	Outcome models.WriteOutcome
}

// Consistent reports whether every attempted store succeeded. False means
// the mutation committed on the authority but left the stores diverged.
func (r Receipt) Consistent() bool {
	return r.Outcome.Consistent()
}

// CreatePost validates and applies a post creation. Identity and timestamps
// are fixed here, before any store is touched, so both stores persist the
// same values and the ledger entry names the right entity even when the
// authority fails.
func (c *Coordinator) CreatePost(ctx context.Context, post *models.Post) (Receipt, error) {
	if err := validatePost(post); err != nil {
		return Receipt{}, err
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

	return c.mutate(ctx, models.KindPost, models.OpCreate, post.ID.String(),
		func(ctx context.Context, b store.Backend) error {
			return b.CreatePost(ctx, post)
		})
}

// UpdatePost replaces the mutable fields of an existing post. The current
// entity is read from the authority first, so created_at is preserved and a
// missing ID surfaces as ErrNotFound before anything is written.
func (c *Coordinator) UpdatePost(ctx context.Context, post *models.Post) (Receipt, error) {
	if post.ID.IsZero() {
		return Receipt{}, fmt.Errorf("update post: %w: missing id", store.ErrInvalid)
	}
	if err := validatePost(post); err != nil {
		return Receipt{}, err
	}

	current, err := preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Post, error) {
		return b.GetPost(ctx, post.ID)
	})
	if err != nil {
		return c.preReadFailure(ctx, models.KindPost, models.OpUpdate, post.ID.String(), err)
	}

	merged := *current
	merged.Title = post.Title
	merged.Content = post.Content
	merged.Author = post.Author
	merged.UpdatedAt = time.Now()

	receipt, err := c.mutate(ctx, models.KindPost, models.OpUpdate, merged.ID.String(),
		func(ctx context.Context, b store.Backend) error {
			return b.UpdatePost(ctx, &merged)
		})
	if err == nil {
		*post = merged
	}
	return receipt, err
}

// DeletePost removes a post and all its comments from both stores. The
// cascade is two ordered calls per store, comments first, so a failure
// between them leaves no orphaned comments on that store.
func (c *Coordinator) DeletePost(ctx context.Context, id models.PostID) (Receipt, error) {
	if id.IsZero() {
		return Receipt{}, fmt.Errorf("delete post: %w: missing id", store.ErrInvalid)
	}
	if _, err := preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Post, error) {
		return b.GetPost(ctx, id)
	}); err != nil {
		return c.preReadFailure(ctx, models.KindPost, models.OpDelete, id.String(), err)
	}

	return c.mutate(ctx, models.KindPost, models.OpDelete, id.String(),
		func(ctx context.Context, b store.Backend) error {
			if err := b.DeleteCommentsByPost(ctx, id); err != nil {
				return err
			}
			return b.DeletePost(ctx, id)
		})
}

// CreateComment validates and applies a comment creation. The parent post
// must exist on the authority; a comment for an unknown post is ErrInvalid.
func (c *Coordinator) CreateComment(ctx context.Context, comment *models.Comment) (Receipt, error) {
	if err := validateComment(comment); err != nil {
		return Receipt{}, err
	}
	if comment.PostID.IsZero() {
		return Receipt{}, fmt.Errorf("create comment: %w: missing post id", store.ErrInvalid)
	}

	if comment.ID.IsZero() {
		comment.ID = models.NewCommentID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	if _, err := preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Post, error) {
		return b.GetPost(ctx, comment.PostID)
	}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Receipt{}, fmt.Errorf("create comment: %w: post %s does not exist", store.ErrInvalid, comment.PostID)
		}
		return c.preReadFailure(ctx, models.KindComment, models.OpCreate, comment.ID.String(), err)
	}

	return c.mutate(ctx, models.KindComment, models.OpCreate, comment.ID.String(),
		func(ctx context.Context, b store.Backend) error {
			return b.CreateComment(ctx, comment)
		})
}

// UpdateComment replaces a comment's commenter and body. The parent post
// reference is immutable: passing a different non-zero post_id is
// ErrInvalid.
func (c *Coordinator) UpdateComment(ctx context.Context, comment *models.Comment) (Receipt, error) {
	if comment.ID.IsZero() {
		return Receipt{}, fmt.Errorf("update comment: %w: missing id", store.ErrInvalid)
	}
	if err := validateComment(comment); err != nil {
		return Receipt{}, err
	}

	current, err := preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Comment, error) {
		return b.GetComment(ctx, comment.ID)
	})
	if err != nil {
		return c.preReadFailure(ctx, models.KindComment, models.OpUpdate, comment.ID.String(), err)
	}
	if !comment.PostID.IsZero() && comment.PostID != current.PostID {
		return Receipt{}, fmt.Errorf("update comment %s: %w: post_id is immutable", comment.ID, store.ErrInvalid)
	}

	merged := *current
	merged.Commenter = comment.Commenter
	merged.Body = comment.Body

	receipt, err := c.mutate(ctx, models.KindComment, models.OpUpdate, merged.ID.String(),
		func(ctx context.Context, b store.Backend) error {
			return b.UpdateComment(ctx, &merged)
		})
	if err == nil {
		*comment = merged
	}
	return receipt, err
}

// DeleteComment removes a single comment from both stores.
func (c *Coordinator) DeleteComment(ctx context.Context, id models.CommentID) (Receipt, error) {
	if id.IsZero() {
		return Receipt{}, fmt.Errorf("delete comment: %w: missing id", store.ErrInvalid)
	}
	if _, err := preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Comment, error) {
		return b.GetComment(ctx, id)
	}); err != nil {
		return c.preReadFailure(ctx, models.KindComment, models.OpDelete, id.String(), err)
	}

	return c.mutate(ctx, models.KindComment, models.OpDelete, id.String(),
		func(ctx context.Context, b store.Backend) error {
			return b.DeleteComment(ctx, id)
		})
}

// GetPost reads one post from the store currently holding write authority.
// Mutation flows that merge fields resolve current state through this, not
// through the read router, so a stale read replica can never feed a write.
func (c *Coordinator) GetPost(ctx context.Context, id models.PostID) (*models.Post, error) {
	return preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Post, error) {
		return b.GetPost(ctx, id)
	})
}

// GetComment reads one comment from the store currently holding write
// authority.
func (c *Coordinator) GetComment(ctx context.Context, id models.CommentID) (*models.Comment, error) {
	return preRead(ctx, c, func(ctx context.Context, b store.Backend) (*models.Comment, error) {
		return b.GetComment(ctx, id)
	})
}

// stores resolves the authority order for the given phase. follower is nil
// in PhaseSecondaryOnly: dual writing has stopped and the primary is no
// longer touched.
func (c *Coordinator) stores(phase Phase) (authority, follower store.Backend, authorityRole, followerRole models.BackendRole) {
	if phase == PhaseSecondaryOnly {
		return c.secondary, nil, models.RoleSecondary, ""
	}
	return c.primary, c.secondary, models.RolePrimary, models.RoleSecondary
}

// mutate runs apply against the authority, then (outside PhaseSecondaryOnly)
// against the follower, records the outcome, and translates the authority's
// failure class.
func (c *Coordinator) mutate(ctx context.Context, kind models.Kind, op models.Operation, entityID string, apply func(context.Context, store.Backend) error) (Receipt, error) {
	phase := c.phases.Current()
	authority, follower, authorityRole, followerRole := c.stores(phase)

	outcome := models.WriteOutcome{Kind: kind, Op: op, EntityID: entityID}

	authErr := c.call(ctx, authority, authorityRole, op, apply)
	setResult(&outcome, authorityRole, authErr)

	if authErr != nil {
		c.record(ctx, outcome)
		c.log.Error().
			Str("kind", string(kind)).Str("op", string(op)).Str("entity_id", outcome.EntityID).
			Str("authority", string(authorityRole)).Str("phase", phase.String()).
			Err(authErr).
			Msg("authority write failed, mutation rejected")
		return Receipt{Outcome: outcome}, authorityFailure(kind, op, authErr)
	}

	if follower != nil {
		folErr := c.call(ctx, follower, followerRole, op, apply)
		setResult(&outcome, followerRole, folErr)
		if folErr != nil {
			c.log.Warn().
				Str("kind", string(kind)).Str("op", string(op)).Str("entity_id", outcome.EntityID).
				Str("follower", string(followerRole)).Str("phase", phase.String()).
				Err(folErr).
				Msg("secondary write failed after authority commit, entity diverged")
		}
	}

	c.record(ctx, outcome)
	return Receipt{Outcome: outcome}, nil
}

// call applies one backend mutation under the per-call timeout.
func (c *Coordinator) call(ctx context.Context, b store.Backend, role models.BackendRole, op models.Operation, apply func(context.Context, store.Backend) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := apply(callCtx, b)
	result := store.Classify(err)
	if result == "" {
		result = "ok"
	}
	c.metrics.ObserveWrite(string(role), string(op), result, time.Since(start))
	return err
}

// preRead fetches current state from the authority before a mutation. Used
// to resolve existence, preserve immutable fields and merge updates.
func preRead[T any](ctx context.Context, c *Coordinator, read func(context.Context, store.Backend) (T, error)) (T, error) {
	authority, _, _, _ := c.stores(c.phases.Current())
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return read(callCtx, authority)
}

// preReadFailure converts an authority pre-read error into the mutation's
// result. NotFound and Invalid are caller errors and append no outcome; an
// unreachable authority means the mutation failed as a whole, which is
// recorded and reported as ErrPrimaryUnavailable.
func (c *Coordinator) preReadFailure(ctx context.Context, kind models.Kind, op models.Operation, entityID string, err error) (Receipt, error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalid) {
		return Receipt{}, err
	}

	phase := c.phases.Current()
	_, _, authorityRole, _ := c.stores(phase)
	outcome := models.WriteOutcome{Kind: kind, Op: op, EntityID: entityID}
	setResult(&outcome, authorityRole, err)
	c.record(ctx, outcome)
	c.log.Error().
		Str("kind", string(kind)).Str("op", string(op)).Str("entity_id", entityID).
		Str("authority", string(authorityRole)).Str("phase", phase.String()).
		Err(err).
		Msg("authority unreachable before mutation")
	return Receipt{Outcome: outcome}, authorityFailure(kind, op, err)
}

// record appends the outcome unconditionally. The ledger contract absorbs
// its own storage failures.
func (c *Coordinator) record(ctx context.Context, outcome models.WriteOutcome) {
	outcome.RecordedAt = time.Now()
	c.ledger.Record(ctx, outcome)
	c.metrics.ObserveOutcome(outcome.Consistent())
}

func setResult(outcome *models.WriteOutcome, role models.BackendRole, err error) {
	result := models.BackendResult{Attempted: true, OK: err == nil, ErrorClass: store.Classify(err)}
	if role == models.RoleSecondary {
		outcome.Secondary = result
	} else {
		outcome.Primary = result
	}
}

// authorityFailure classifies the authority's error for the caller. Caller
// errors (conflict, not found, invalid) pass through untouched; anything
// else means the store of record could not perform the write, which is the
// one failure that rejects the whole mutation.
func authorityFailure(kind models.Kind, op models.Operation, err error) error {
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalid) {
		return err
	}
	return fmt.Errorf("%s %s: %w: %w", op, kind, store.ErrPrimaryUnavailable, err)
}

func validatePost(post *models.Post) error {
	switch {
	case strings.TrimSpace(post.Title) == "":
		return fmt.Errorf("%w: post title must not be empty", store.ErrInvalid)
	case strings.TrimSpace(post.Content) == "":
		return fmt.Errorf("%w: post content must not be empty", store.ErrInvalid)
	case strings.TrimSpace(post.Author) == "":
		return fmt.Errorf("%w: post author must not be empty", store.ErrInvalid)
	}
	return nil
}

func validateComment(comment *models.Comment) error {
	switch {
	case strings.TrimSpace(comment.Commenter) == "":
		return fmt.Errorf("%w: commenter must not be empty", store.ErrInvalid)
	case strings.TrimSpace(comment.Body) == "":
		return fmt.Errorf("%w: comment body must not be empty", store.ErrInvalid)
	}
	return nil
}
