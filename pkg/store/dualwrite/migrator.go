package dualwrite

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// DefaultMigrationWorkers bounds concurrent entity copies during a bulk run.
const DefaultMigrationWorkers = 4

// Report is the result of one bulk migration run: what was copied, what
// failed, and whether the final count verification matched. Mismatch false
// is the cutover gate's requirement for entering PhaseSecondaryOnly.
type Report struct {
	PostsCopied    int64 `json:"posts_copied"`
	CommentsCopied int64 `json:"comments_copied"`
	Errors         int64 `json:"errors"`

	SourcePosts    int64 `json:"source_posts"`
	TargetPosts    int64 `json:"target_posts"`
	SourceComments int64 `json:"source_comments"`
	TargetComments int64 `json:"target_comments"`

	// Mismatch is true when the post or comment counts differ between the
	// stores after the run, or when verification could not complete.
	Mismatch bool `json:"mismatch"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Migrator copies the full data set from the source store into the target
// store: posts first, then comments, so parents land before children.
//
// The copy is an idempotent upsert by identity: an entity that already
// exists in the target under the same ID is overwritten with the source's
// mutable fields, never duplicated, so a run can be repeated or resumed
// after a partial failure. Individual entity failures are counted and
// logged but do not stop the run; the run only refuses to start when
// neither store answers a ping. Cancellation is honored between entities,
// letting in-flight copies finish.
type Migrator struct {
	source  store.Backend
	target  store.Backend
	phases  *Controller
	workers int
	timeout time.Duration
	log     zerolog.Logger
	metrics *Metrics
}

// NewMigrator wires a bulk migrator copying source into target. The
// completed report is published to the phase controller for the cutover
// gate.
func NewMigrator(source, target store.Backend, phases *Controller, opts Options) *Migrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultMigrationWorkers
	}
	return &Migrator{
		source:  source,
		target:  target,
		phases:  phases,
		workers: workers,
		timeout: opts.timeout(),
		log:     opts.Logger.With().Str("component", "migrator").Logger(),
		metrics: opts.Metrics,
	}
}

// Run executes one bulk migration and returns its report. The report is
// always published to the phase controller, canceled runs included: a run
// that could not verify reports Mismatch true and therefore cannot unlock
// cutover. The returned error is non-nil only when the job could not start
// or the context was canceled; per-entity failures live in the report.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	if err := m.preflight(ctx); err != nil {
		return nil, err
	}

	report := &Report{StartedAt: time.Now()}
	var postsCopied, commentsCopied, errCount atomic.Int64

	m.log.Info().Int("workers", m.workers).Msg("bulk migration started")

	posts, err := m.fetchPosts(ctx)
	if err != nil {
		// Without the post list neither kind can be enumerated.
		errCount.Add(1)
		m.log.Error().Err(err).Msg("listing source posts failed, nothing to copy")
	} else {
		m.copyPosts(ctx, posts, &postsCopied, &errCount)
		m.copyComments(ctx, posts, &commentsCopied, &errCount)
	}

	report.PostsCopied = postsCopied.Load()
	report.CommentsCopied = commentsCopied.Load()
	report.Errors = errCount.Load()

	if ctx.Err() != nil {
		report.Mismatch = true
		report.FinishedAt = time.Now()
		m.publish(report)
		m.log.Warn().Int64("posts_copied", report.PostsCopied).
			Int64("comments_copied", report.CommentsCopied).
			Int64("errors", report.Errors).
			Msg("bulk migration canceled before verification")
		return report, fmt.Errorf("bulk migration: %w", ctx.Err())
	}

	m.verify(ctx, report)
	report.FinishedAt = time.Now()
	m.publish(report)

	m.log.Info().
		Int64("posts_copied", report.PostsCopied).
		Int64("comments_copied", report.CommentsCopied).
		Int64("errors", report.Errors).
		Bool("mismatch", report.Mismatch).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("bulk migration finished")
	return report, nil
}

// preflight refuses to start a run only when neither store is reachable;
// with one store down the run proceeds and its failures are reported
// per entity.
func (m *Migrator) preflight(ctx context.Context) error {
	srcErr := m.ping(ctx, m.source)
	dstErr := m.ping(ctx, m.target)
	if srcErr != nil && dstErr != nil {
		return fmt.Errorf("bulk migration cannot start: %w: source: %v; target: %v",
			store.ErrUnavailable, srcErr, dstErr)
	}
	return nil
}

func (m *Migrator) ping(ctx context.Context, b store.Backend) error {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return b.Ping(callCtx)
}

func (m *Migrator) copyPosts(ctx context.Context, posts []*models.Post, copied, errCount *atomic.Int64) {
	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, post := range posts {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := m.copyPost(ctx, post); err != nil {
				errCount.Add(1)
				m.metrics.ObserveMigratedEntity(string(models.KindPost), store.Classify(err))
				m.log.Error().Str("post_id", post.ID.String()).Err(err).Msg("post copy failed")
				return nil
			}
			copied.Add(1)
			m.metrics.ObserveMigratedEntity(string(models.KindPost), "ok")
			return nil
		})
	}
	g.Wait()
}

func (m *Migrator) copyComments(ctx context.Context, posts []*models.Post, copied, errCount *atomic.Int64) {
	comments, err := m.fetchComments(ctx, posts)
	if err != nil {
		errCount.Add(1)
		m.log.Error().Err(err).Msg("listing source comments failed, comment copy skipped")
		return
	}

	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, comment := range comments {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := m.copyComment(ctx, comment); err != nil {
				errCount.Add(1)
				m.metrics.ObserveMigratedEntity(string(models.KindComment), store.Classify(err))
				m.log.Error().Str("comment_id", comment.ID.String()).Err(err).Msg("comment copy failed")
				return nil
			}
			copied.Add(1)
			m.metrics.ObserveMigratedEntity(string(models.KindComment), "ok")
			return nil
		})
	}
	g.Wait()
}

func (m *Migrator) fetchPosts(ctx context.Context) ([]*models.Post, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.source.ListPosts(callCtx, store.ByCreatedAtDesc)
}

// fetchComments enumerates all comments by walking the posts. The store
// interface scopes comment listing to a post, which is also the order the
// copy wants: children grouped behind their parent.
func (m *Migrator) fetchComments(ctx context.Context, posts []*models.Post) ([]*models.Comment, error) {
	var all []*models.Comment
	for _, post := range posts {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		comments, err := m.source.ListComments(callCtx, post.ID)
		cancel()
		if err != nil {
			return nil, err
		}
		all = append(all, comments...)
	}
	return all, nil
}

func (m *Migrator) copyPost(ctx context.Context, post *models.Post) error {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := upsertPost(callCtx, m.target, post)
	return err
}

func (m *Migrator) copyComment(ctx context.Context, comment *models.Comment) error {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := upsertComment(callCtx, m.target, comment)
	return err
}

// verify compares entity counts across the stores. A count that cannot be
// read marks the run mismatched: unverified is not verified.
func (m *Migrator) verify(ctx context.Context, report *Report) {
	counts := []struct {
		name string
		dst  *int64
		read func(context.Context) (int64, error)
	}{
		{"source posts", &report.SourcePosts, m.source.CountPosts},
		{"target posts", &report.TargetPosts, m.target.CountPosts},
		{"source comments", &report.SourceComments, m.source.CountComments},
		{"target comments", &report.TargetComments, m.target.CountComments},
	}
	for _, c := range counts {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		n, err := c.read(callCtx)
		cancel()
		if err != nil {
			report.Errors++
			report.Mismatch = true
			m.log.Error().Str("count", c.name).Err(err).Msg("count verification failed")
			return
		}
		*c.dst = n
	}
	report.Mismatch = report.SourcePosts != report.TargetPosts ||
		report.SourceComments != report.TargetComments
}

func (m *Migrator) publish(report *Report) {
	m.phases.SetLastReport(report)
}

// upsertPost writes post into the target under its existing identity:
// update when present, create when absent. Returns whether a new record was
// created.
func upsertPost(ctx context.Context, target store.Backend, post *models.Post) (bool, error) {
	_, err := target.GetPost(ctx, post.ID)
	switch {
	case err == nil:
		p := *post
		return false, target.UpdatePost(ctx, &p)
	case errors.Is(err, store.ErrNotFound):
		p := *post
		return true, target.CreatePost(ctx, &p)
	default:
		return false, err
	}
}

// upsertComment is the comment counterpart of upsertPost.
func upsertComment(ctx context.Context, target store.Backend, comment *models.Comment) (bool, error) {
	_, err := target.GetComment(ctx, comment.ID)
	switch {
	case err == nil:
		c := *comment
		return false, target.UpdateComment(ctx, &c)
	case errors.Is(err, store.ErrNotFound):
		c := *comment
		return true, target.CreateComment(ctx, &c)
	default:
		return false, err
	}
}
