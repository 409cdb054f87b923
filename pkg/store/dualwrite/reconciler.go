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

// SweepReport summarizes one reconciliation sweep.
type SweepReport struct {
	Examined int64 `json:"examined"`
	Repaired int64 `json:"repaired"`
	Failed   int64 `json:"failed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Reconciler repairs the divergence the ledger has recorded: entities whose
// most recent outcome failed on one store. For each divergent entity the
// current write authority is read and the other store is forced to match it,
// upserting what exists and deleting what does not. Repairing an entity that
// has since converged on its own is a harmless overwrite with equal values.
type Reconciler struct {
	primary   store.Backend
	secondary store.Backend
	phases    *Controller
	ledger    store.Ledger
	timeout   time.Duration
	log       zerolog.Logger
	metrics   *Metrics
}

// NewReconciler wires a reconciler over the two stores and the ledger.
func NewReconciler(primary, secondary store.Backend, phases *Controller, ledger store.Ledger, opts Options) *Reconciler {
	return &Reconciler{
		primary:   primary,
		secondary: secondary,
		phases:    phases,
		ledger:    ledger,
		timeout:   opts.timeout(),
		log:       opts.Logger.With().Str("component", "reconciler").Logger(),
		metrics:   opts.Metrics,
	}
}

// Sweep repairs every entity the ledger reports divergent since the given
// time. Per-entity repair failures are counted, logged and left for the
// next sweep; the sweep itself fails only when the divergent set cannot be
// read or the context ends.
func (r *Reconciler) Sweep(ctx context.Context, since time.Time) (*SweepReport, error) {
	refs, err := r.ledger.FindDivergent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("reconcile sweep: %w", err)
	}

	report := &SweepReport{StartedAt: time.Now()}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, fmt.Errorf("reconcile sweep: %w", err)
		}
		report.Examined++
		if err := r.repair(ctx, ref); err != nil {
			report.Failed++
			r.log.Error().Str("kind", string(ref.Kind)).Str("entity_id", ref.ID).Err(err).
				Msg("repair failed, entity stays divergent")
			continue
		}
		report.Repaired++
		r.log.Info().Str("kind", string(ref.Kind)).Str("entity_id", ref.ID).Msg("entity repaired")
	}
	report.FinishedAt = time.Now()
	return report, nil
}

// repair forces the non-authoritative store to match the authority's state
// for one entity, then appends a ledger outcome witnessing that both stores
// now agree. Both backend results are recorded as successful: the authority
// answered the read and the follower took the write, and the divergence
// computation clears a recorded failure only through a later success on that
// same backend, whichever side the failure was on.
func (r *Reconciler) repair(ctx context.Context, ref models.EntityRef) error {
	authority, follower := r.primary, r.secondary
	if r.phases.Current() == PhaseSecondaryOnly {
		authority, follower = r.secondary, r.primary
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var op models.Operation
	var err error
	switch ref.Kind {
	case models.KindPost:
		var id models.PostID
		if id, err = models.ParsePostID(ref.ID); err != nil {
			return fmt.Errorf("%w: bad post id %q", store.ErrInvalid, ref.ID)
		}
		op, err = repairPost(callCtx, authority, follower, id)
	case models.KindComment:
		var id models.CommentID
		if id, err = models.ParseCommentID(ref.ID); err != nil {
			return fmt.Errorf("%w: bad comment id %q", store.ErrInvalid, ref.ID)
		}
		op, err = repairComment(callCtx, authority, follower, id)
	default:
		return fmt.Errorf("%w: unknown entity kind %q", store.ErrInvalid, ref.Kind)
	}
	if err != nil {
		return err
	}

	outcome := models.WriteOutcome{Kind: ref.Kind, EntityID: ref.ID, Op: op, RecordedAt: time.Now()}
	setResult(&outcome, models.RolePrimary, nil)
	setResult(&outcome, models.RoleSecondary, nil)
	r.ledger.Record(ctx, outcome)
	r.metrics.ObserveOutcome(true)
	return nil
}

func repairPost(ctx context.Context, authority, follower store.Backend, id models.PostID) (models.Operation, error) {
	post, err := authority.GetPost(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Deleted on the authority: finish the cascade on the follower.
		if err := follower.DeleteCommentsByPost(ctx, id); err != nil {
			return "", err
		}
		if err := follower.DeletePost(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		return models.OpDelete, nil
	case err != nil:
		return "", err
	default:
		created, err := upsertPost(ctx, follower, post)
		if err != nil {
			return "", err
		}
		if created {
			return models.OpCreate, nil
		}
		return models.OpUpdate, nil
	}
}

func repairComment(ctx context.Context, authority, follower store.Backend, id models.CommentID) (models.Operation, error) {
	comment, err := authority.GetComment(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := follower.DeleteComment(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		return models.OpDelete, nil
	case err != nil:
		return "", err
	default:
		created, err := upsertComment(ctx, follower, comment)
		if err != nil {
			return "", err
		}
		if created {
			return models.OpCreate, nil
		}
		return models.OpUpdate, nil
	}
}
