package store

import (
	"context"
	"time"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
)

// Ledger is the append-only record of per-entity write outcomes that
// reconciliation is built on. The dual-write coordinator records an outcome
// after every mutation attempt, successes included; entries are never
// mutated.
//
// Record deliberately returns nothing: losing an audit record must never fail
// or block a user-facing write, so implementations handle their own storage
// errors (log and continue). Appends must be safe under concurrent writers,
// and sequence numbers must be assigned in append order so a single entity's
// history reads back in real attempt order.
type Ledger interface {
	// Record appends one outcome. Best effort, never fails the caller.
	Record(ctx context.Context, outcome models.WriteOutcome)

	// FindDivergent returns the entities recorded at or after since that have
	// at least one failed backend result with no later successful outcome for
	// that same backend. These are the entities a reconciliation sweep needs
	// to repair.
	FindDivergent(ctx context.Context, since time.Time) ([]models.EntityRef, error)

	// Outcomes returns the outcomes recorded at or after since, in append
	// order.
	Outcomes(ctx context.Context, since time.Time) ([]models.WriteOutcome, error)

	// Stats summarizes the ledger for divergence inspection.
	Stats(ctx context.Context) (LedgerStats, error)
}

// Divergent computes the divergent entity set from outcomes already filtered
// to the window of interest. Outcomes must be in append order. An entity is
// divergent when its most recent attempted result on either backend is a
// failure; a later successful outcome on the same backend clears the earlier
// failure. Entities are returned in first-seen order.
func Divergent(outcomes []models.WriteOutcome) []models.EntityRef {
	type state struct {
		primaryBad   bool
		secondaryBad bool
	}
	states := make(map[models.EntityRef]*state)
	var order []models.EntityRef

	for _, o := range outcomes {
		ref := o.Ref()
		st, ok := states[ref]
		if !ok {
			st = &state{}
			states[ref] = st
			order = append(order, ref)
		}
		if o.Primary.Attempted {
			st.primaryBad = !o.Primary.OK
		}
		if o.Secondary.Attempted {
			st.secondaryBad = !o.Secondary.OK
		}
	}

	var refs []models.EntityRef
	for _, ref := range order {
		if st := states[ref]; st.primaryBad || st.secondaryBad {
			refs = append(refs, ref)
		}
	}
	return refs
}

// LedgerStats summarizes the outcome history.
type LedgerStats struct {
	// TotalOutcomes is the number of recorded outcomes.
	TotalOutcomes int64 `json:"total_outcomes"`

	// FailedOutcomes is the number of outcomes where at least one attempted
	// backend failed.
	FailedOutcomes int64 `json:"failed_outcomes"`

	// DivergentEntities is the number of distinct entities currently needing
	// repair (as FindDivergent since the beginning of time would report).
	DivergentEntities int64 `json:"divergent_entities"`

	// LastRecordedAt is the timestamp of the newest outcome, nil when the
	// ledger is empty.
	LastRecordedAt *time.Time `json:"last_recorded_at,omitempty"`
}
