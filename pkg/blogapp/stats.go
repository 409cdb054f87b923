package blogapp

import (
	"context"
	"fmt"

	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/dualwrite"
)

// EntityCounts is one store's entity census.
type EntityCounts struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}

// StoreStats compares both stores' entity counts. Consistent means the
// counts agree; it says nothing about row contents, which is what the
// reconciliation ledger tracks.
type StoreStats struct {
	Primary    EntityCounts `json:"primary"`
	Secondary  EntityCounts `json:"secondary"`
	Consistent bool         `json:"consistent"`
}

// GetStoreStats counts posts and comments on both stores. Either store
// being unreachable fails the call; a census of one store answers nothing
// about consistency.
func (a *App) GetStoreStats(ctx context.Context) (*StoreStats, error) {
	primary, err := a.countEntities(ctx, a.primary)
	if err != nil {
		return nil, fmt.Errorf("count primary: %w", err)
	}
	secondary, err := a.countEntities(ctx, a.secondary)
	if err != nil {
		return nil, fmt.Errorf("count secondary: %w", err)
	}
	return &StoreStats{
		Primary:    primary,
		Secondary:  secondary,
		Consistent: primary == secondary,
	}, nil
}

func (a *App) countEntities(ctx context.Context, b store.Backend) (EntityCounts, error) {
	posts, err := b.CountPosts(ctx)
	if err != nil {
		return EntityCounts{}, err
	}
	comments, err := b.CountComments(ctx)
	if err != nil {
		return EntityCounts{}, err
	}
	return EntityCounts{Posts: posts, Comments: comments}, nil
}

// RetirePrimary drops the primary's blog tables. Allowed only in
// secondary_only phase, and only when the primary backend supports
// destructive retirement; the reconciliation ledger is not touched.
func (a *App) RetirePrimary(ctx context.Context) error {
	if phase := a.phases.Current(); phase != dualwrite.PhaseSecondaryOnly {
		return fmt.Errorf("retire primary in %s: %w: cutover must complete first",
			phase, store.ErrInvalidTransition)
	}
	retirer, ok := a.primary.(store.Retirer)
	if !ok {
		return fmt.Errorf("retire primary: %w: backend does not support retirement", store.ErrInvalid)
	}
	if err := retirer.DropAll(ctx); err != nil {
		return fmt.Errorf("retire primary: %w", err)
	}
	a.log.Warn().Msg("primary blog tables dropped")
	return nil
}
