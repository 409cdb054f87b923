package postgres

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
)

// Ledger is the durable reconciliation ledger, appending write outcomes to
// the write_outcomes table. It shares the store's connection pool but runs
// outside any caller transaction: an outcome append that fails must not
// roll back or fail the mutation it describes, so Record logs and drops
// instead of returning an error.
type Ledger struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ store.Ledger = (*Ledger)(nil)

// NewLedger returns a ledger backed by the store's database.
func NewLedger(s *Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:  s.db,
		log: log.With().Str("component", "ledger").Logger(),
	}
}

// Record appends one outcome. The sequence number is assigned by the
// database; on storage failure the outcome is logged and dropped.
func (l *Ledger) Record(ctx context.Context, outcome models.WriteOutcome) {
	if err := l.db.WithContext(ctx).Create(&outcome).Error; err != nil {
		l.log.Error().
			Err(err).
			Str("kind", string(outcome.Kind)).
			Str("entity_id", outcome.EntityID).
			Str("op", string(outcome.Op)).
			Msg("dropping write outcome, ledger table unreachable")
	}
}

func (l *Ledger) Outcomes(ctx context.Context, since time.Time) ([]models.WriteOutcome, error) {
	var outcomes []models.WriteOutcome
	err := l.db.WithContext(ctx).
		Where("recorded_at >= ?", since).
		Order("seq ASC").
		Find(&outcomes).Error
	if err != nil {
		return nil, mapErr("list outcomes", err)
	}
	return outcomes, nil
}

func (l *Ledger) FindDivergent(ctx context.Context, since time.Time) ([]models.EntityRef, error) {
	outcomes, err := l.Outcomes(ctx, since)
	if err != nil {
		return nil, err
	}
	return store.Divergent(outcomes), nil
}

// Stats aggregates the ledger. Counting runs in SQL; the divergent set is
// computed from the full history, which keeps this an inspection endpoint
// rather than something to call on a hot path.
func (l *Ledger) Stats(ctx context.Context) (store.LedgerStats, error) {
	var stats store.LedgerStats

	model := l.db.WithContext(ctx).Model(&models.WriteOutcome{})
	if err := model.Count(&stats.TotalOutcomes).Error; err != nil {
		return store.LedgerStats{}, mapErr("count outcomes", err)
	}

	err := l.db.WithContext(ctx).Model(&models.WriteOutcome{}).
		Where("(primary_attempted AND NOT primary_ok) OR (secondary_attempted AND NOT secondary_ok)").
		Count(&stats.FailedOutcomes).Error
	if err != nil {
		return store.LedgerStats{}, mapErr("count failed outcomes", err)
	}

	outcomes, err := l.Outcomes(ctx, time.Time{})
	if err != nil {
		return store.LedgerStats{}, err
	}
	stats.DivergentEntities = int64(len(store.Divergent(outcomes)))
	if n := len(outcomes); n > 0 {
		t := outcomes[n-1].RecordedAt
		stats.LastRecordedAt = &t
	}
	return stats, nil
}
