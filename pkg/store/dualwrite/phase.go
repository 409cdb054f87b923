// Package dualwrite coordinates the blog's two stores through a staged
// migration: every mutation is applied to both backends with asymmetric
// failure handling, every attempt is recorded in a reconciliation ledger,
// reads are routed by migration phase, and a bulk migrator copies and
// verifies the full data set before the cutover phase is allowed.
//
// The package deliberately separates four concerns the original system mixed
// together: the [Coordinator] owns write semantics, the [Router] owns read
// placement, the [Controller] owns phase state and transition gating, and the
// [Migrator] owns the bulk copy. All of them depend only on
// [github.com/Youssef-Hossam5/Blog-app/pkg/store.Backend], so any combination
// of PostgreSQL, SurrealDB and in-memory stores can play either role.
package dualwrite

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// Phase is the migration stage the process is in. It orders: each phase's
// numeric value is its position in the cutover sequence.
type Phase int32

const (
	// PhaseDualWritePrimaryRead is the starting phase: both stores receive
	// writes, all reads are served by the primary.
	PhaseDualWritePrimaryRead Phase = iota

	// PhaseDualWriteSecondaryRead keeps dual writes but serves reads from
	// the secondary, falling back to the primary transparently when the
	// secondary is unreachable.
	PhaseDualWriteSecondaryRead

	// PhaseSecondaryOnly is the terminal phase: the secondary is the sole
	// authority for reads and writes, and the primary may be decommissioned.
	PhaseSecondaryOnly
)

var phaseNames = map[Phase]string{
	PhaseDualWritePrimaryRead:   "dual_write_primary_read",
	PhaseDualWriteSecondaryRead: "dual_write_secondary_read",
	PhaseSecondaryOnly:          "secondary_only",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// ParsePhase converts a phase name as used in configuration and the CLI.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown phase %q", store.ErrInvalid, s)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("marshal phase: %w: %d", store.ErrInvalid, int32(p))
	}
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("unmarshal phase: %w: %s", store.ErrInvalid, data)
	}
	parsed, err := ParsePhase(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Controller holds the process-wide migration phase. Current is a single
// atomic load so the coordinator and router can consult it on every request
// without a lock; transitions serialize on a mutex.
//
// Advance moves exactly one phase forward and enforces the cutover gate:
// entering PhaseSecondaryOnly requires that the most recent completed bulk
// migration run verified with no count mismatch. Rollback moves to any
// earlier phase without checks; by invoking it the operator asserts the
// earlier phase is safe.
type Controller struct {
	phase      atomic.Int32
	mu         sync.Mutex
	lastReport atomic.Pointer[Report]
	log        zerolog.Logger
}

// NewController returns a controller starting in the given phase.
func NewController(initial Phase, log zerolog.Logger) (*Controller, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: phase %d", store.ErrInvalid, int32(initial))
	}
	c := &Controller{log: log.With().Str("component", "phase").Logger()}
	c.phase.Store(int32(initial))
	return c, nil
}

// Current returns the phase. Safe for concurrent use; never blocks.
func (c *Controller) Current() Phase {
	return Phase(c.phase.Load())
}

// Advance moves the controller to target, which must be exactly one phase
// ahead of the current one. Entering PhaseSecondaryOnly additionally
// requires a completed migration run whose report shows matching counts.
func (c *Controller) Advance(target Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.Current()
	if !target.Valid() {
		return fmt.Errorf("advance: %w: phase %d", store.ErrInvalid, int32(target))
	}
	if target != current+1 {
		return fmt.Errorf("advance %s to %s: %w: phases advance one step at a time",
			current, target, store.ErrInvalidTransition)
	}
	if target == PhaseSecondaryOnly {
		report := c.lastReport.Load()
		switch {
		case report == nil:
			return fmt.Errorf("advance to %s: %w: no completed bulk migration run",
				target, store.ErrInvalidTransition)
		case report.Mismatch:
			return fmt.Errorf("advance to %s: %w: last bulk migration reported a count mismatch",
				target, store.ErrInvalidTransition)
		}
	}

	c.phase.Store(int32(target))
	c.log.Info().Str("from", current.String()).Str("to", target.String()).Msg("migration phase advanced")
	return nil
}

// Rollback moves the controller to target, which must be an earlier phase.
// No state is verified: the operator asserts the earlier phase is safe to
// serve from.
func (c *Controller) Rollback(target Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.Current()
	if !target.Valid() {
		return fmt.Errorf("rollback: %w: phase %d", store.ErrInvalid, int32(target))
	}
	if target >= current {
		return fmt.Errorf("rollback %s to %s: %w: target must be an earlier phase",
			current, target, store.ErrInvalidTransition)
	}

	c.phase.Store(int32(target))
	c.log.Warn().Str("from", current.String()).Str("to", target.String()).Msg("migration phase rolled back")
	return nil
}

// SetLastReport stores the report of a completed bulk migration run for the
// cutover gate. Called by the migrator; the newest run wins.
func (c *Controller) SetLastReport(report *Report) {
	c.lastReport.Store(report)
}

// LastReport returns the most recent completed bulk migration report, or nil
// when no run has completed in this process.
func (c *Controller) LastReport() *Report {
	return c.lastReport.Load()
}
