package dualwrite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// RouteInfo reports which store actually served a read. Fallback is true
// when the phase wanted the secondary but the primary answered instead; the
// caller sees correct data either way, the flag only makes the detour
// observable.
type RouteInfo struct {
	Backend  models.BackendRole `json:"backend"`
	Fallback bool               `json:"fallback"`
}

// Router places reads on a backend according to the migration phase.
//
//   - PhaseDualWritePrimaryRead: the primary serves; its failure surfaces.
//   - PhaseDualWriteSecondaryRead: the secondary serves. A quick Ping skips
//     a store that is already known down, and an unavailability failure
//     falls back to the primary transparently. Only when both stores fail
//     does the caller see an error.
//   - PhaseSecondaryOnly: the secondary serves alone; its failure surfaces
//     because the primary may already be decommissioned.
//
// A NotFound from the serving store is an answer, not an outage, and never
// triggers fallback.
type Router struct {
	primary   store.Backend
	secondary store.Backend
	phases    *Controller
	timeout   time.Duration
	log       zerolog.Logger
	metrics   *Metrics
}

// NewRouter wires a router over the two stores.
func NewRouter(primary, secondary store.Backend, phases *Controller, opts Options) *Router {
	return &Router{
		primary:   primary,
		secondary: secondary,
		phases:    phases,
		timeout:   opts.timeout(),
		log:       opts.Logger.With().Str("component", "router").Logger(),
		metrics:   opts.Metrics,
	}
}

// GetPost reads one post via the phase-selected store.
func (r *Router) GetPost(ctx context.Context, id models.PostID) (*models.Post, RouteInfo, error) {
	return routeRead(ctx, r, func(ctx context.Context, b store.Backend) (*models.Post, error) {
		return b.GetPost(ctx, id)
	})
}

// ListPosts reads all posts in the requested order via the phase-selected
// store.
func (r *Router) ListPosts(ctx context.Context, sort store.SortSpec) ([]*models.Post, RouteInfo, error) {
	return routeRead(ctx, r, func(ctx context.Context, b store.Backend) ([]*models.Post, error) {
		return b.ListPosts(ctx, sort)
	})
}

// CountPostsByAuthor reads the per-author post counts via the phase-selected
// store.
func (r *Router) CountPostsByAuthor(ctx context.Context) (map[string]int64, RouteInfo, error) {
	return routeRead(ctx, r, func(ctx context.Context, b store.Backend) (map[string]int64, error) {
		return b.CountPostsByAuthor(ctx)
	})
}

// GetComment reads one comment via the phase-selected store.
func (r *Router) GetComment(ctx context.Context, id models.CommentID) (*models.Comment, RouteInfo, error) {
	return routeRead(ctx, r, func(ctx context.Context, b store.Backend) (*models.Comment, error) {
		return b.GetComment(ctx, id)
	})
}

// ListComments reads one post's comments via the phase-selected store.
func (r *Router) ListComments(ctx context.Context, postID models.PostID) ([]*models.Comment, RouteInfo, error) {
	return routeRead(ctx, r, func(ctx context.Context, b store.Backend) ([]*models.Comment, error) {
		return b.ListComments(ctx, postID)
	})
}

func routeRead[T any](ctx context.Context, r *Router, read func(context.Context, store.Backend) (T, error)) (T, RouteInfo, error) {
	var zero T

	switch phase := r.phases.Current(); phase {
	case PhaseDualWritePrimaryRead:
		info := RouteInfo{Backend: models.RolePrimary}
		v, err := readFrom(ctx, r, r.primary, read)
		r.metrics.ObserveRead(string(info.Backend), info.Fallback)
		return v, info, err

	case PhaseSecondaryOnly:
		info := RouteInfo{Backend: models.RoleSecondary}
		v, err := readFrom(ctx, r, r.secondary, read)
		r.metrics.ObserveRead(string(info.Backend), info.Fallback)
		return v, info, err

	case PhaseDualWriteSecondaryRead:
		if pingErr := r.pingSecondary(ctx); pingErr != nil {
			r.log.Debug().Err(pingErr).Msg("secondary ping failed, serving read from primary")
			return fallbackRead(ctx, r, read, pingErr)
		}
		v, err := readFrom(ctx, r, r.secondary, read)
		if err != nil && fallbackEligible(err) {
			r.log.Warn().Err(err).Msg("secondary read failed, serving read from primary")
			return fallbackRead(ctx, r, read, err)
		}
		info := RouteInfo{Backend: models.RoleSecondary}
		r.metrics.ObserveRead(string(info.Backend), info.Fallback)
		return v, info, err

	default:
		return zero, RouteInfo{}, fmt.Errorf("%w: phase %d", store.ErrInvalid, int32(phase))
	}
}

// fallbackRead serves the read from the primary after the secondary failed
// with secondaryErr. When the primary fails too, both errors surface.
func fallbackRead[T any](ctx context.Context, r *Router, read func(context.Context, store.Backend) (T, error), secondaryErr error) (T, RouteInfo, error) {
	info := RouteInfo{Backend: models.RolePrimary, Fallback: true}
	v, err := readFrom(ctx, r, r.primary, read)
	r.metrics.ObserveRead(string(info.Backend), info.Fallback)
	if err != nil && fallbackEligible(err) {
		return v, info, fmt.Errorf("both stores failed: secondary: %w; primary: %w", secondaryErr, err)
	}
	return v, info, err
}

func readFrom[T any](ctx context.Context, r *Router, b store.Backend, read func(context.Context, store.Backend) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return read(callCtx, b)
}

// pingSecondary is the fast-path liveness probe run before secondary reads,
// under a fraction of the call timeout so a dead store is skipped quickly.
func (r *Router) pingSecondary(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, r.timeout/2)
	defer cancel()
	return r.secondary.Ping(pingCtx)
}

// fallbackEligible reports whether a read failure should divert to the other
// store. NotFound and Invalid are answers about the data, served as-is.
func fallbackEligible(err error) bool {
	return !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalid)
}
