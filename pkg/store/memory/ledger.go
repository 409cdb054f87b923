package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// Ledger is the in-process reconciliation ledger: an append-only slice under
// a mutex. Sequence numbers are assigned under the lock, so concurrent
// appends serialize and a single entity's history keeps real attempt order.
type Ledger struct {
	mu       sync.Mutex
	seq      uint64
	outcomes []models.WriteOutcome
}

var _ store.Ledger = (*Ledger)(nil)

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Record(ctx context.Context, outcome models.WriteOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	outcome.Seq = l.seq
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now()
	}
	l.outcomes = append(l.outcomes, outcome)
}

func (l *Ledger) Outcomes(ctx context.Context, since time.Time) ([]models.WriteOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.WriteOutcome
	for _, o := range l.outcomes {
		if !o.RecordedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *Ledger) FindDivergent(ctx context.Context, since time.Time) ([]models.EntityRef, error) {
	outcomes, err := l.Outcomes(ctx, since)
	if err != nil {
		return nil, err
	}
	return store.Divergent(outcomes), nil
}

func (l *Ledger) Stats(ctx context.Context) (store.LedgerStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := store.LedgerStats{
		TotalOutcomes: int64(len(l.outcomes)),
	}
	for _, o := range l.outcomes {
		if !o.Consistent() {
			stats.FailedOutcomes++
		}
	}
	stats.DivergentEntities = int64(len(store.Divergent(l.outcomes)))
	if n := len(l.outcomes); n > 0 {
		t := l.outcomes[n-1].RecordedAt
		stats.LastRecordedAt = &t
	}
	return stats, nil
}
