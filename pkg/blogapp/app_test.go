package blogapp_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youssef-Hossam5/Blog-app/pkg/blogapp"
	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/dualwrite"
)

func newTestApp(t *testing.T, phase string) *blogapp.App {
	t.Helper()
	cfg := &blogapp.Config{
		Phase:          phase,
		BackendTimeout: time.Second,
		MigrateWorkers: 2,
		MemoryOnly:     true,
	}
	app, err := blogapp.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func strptr(s string) *string { return &s }

// TestStagedCutover walks the full migration lifecycle on in-memory stores:
// dual writes, the read switch, the verification gate, cutover, retirement
// and an operator rollback.
func TestStagedCutover(t *testing.T) {
	app := newTestApp(t, "dual_write_primary_read")
	ctx := context.Background()
	require.NoError(t, app.Setup(ctx))

	brisket, err := app.CreatePost(ctx, "Brisket notes", "alice", "low and slow")
	require.NoError(t, err)
	_, err = app.CreatePost(ctx, "apple pie", "alice", "cold butter")
	require.NoError(t, err)
	_, err = app.CreatePost(ctx, "Cherry cake", "bob", "stone the cherries")
	require.NoError(t, err)
	for _, body := range []string{"looks great", "how long to rest?"} {
		_, err := app.AddComment(ctx, brisket.ID, "carol", body)
		require.NoError(t, err)
	}

	byTitle, err := app.ListPosts(ctx, store.ByTitleAlphaCI)
	require.NoError(t, err)
	require.Len(t, byTitle, 3)
	assert.Equal(t, "apple pie", byTitle[0].Title, "title order ignores case")
	assert.Equal(t, "Brisket notes", byTitle[1].Title)
	assert.Equal(t, "Cherry cake", byTitle[2].Title)

	counts, err := app.AuthorPostCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["alice"])
	assert.Equal(t, int64(1), counts["bob"])

	updated, err := app.UpdatePost(ctx, brisket.ID, blogapp.PostFields{Title: strptr("Brisket notes, v2")})
	require.NoError(t, err)
	assert.Equal(t, "Brisket notes, v2", updated.Title)
	assert.Equal(t, "low and slow", updated.Content, "unset fields keep their values")
	assert.Equal(t, "alice", updated.Author)

	// The cutover gate: no skipping, no entry without a verified migration.
	err = app.AdvanceMigrationPhase(dualwrite.PhaseSecondaryOnly)
	require.ErrorIs(t, err, store.ErrInvalidTransition)
	require.NoError(t, app.AdvanceMigrationPhase(dualwrite.PhaseDualWriteSecondaryRead))

	got, err := app.GetPost(ctx, brisket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brisket notes, v2", got.Title, "the dual-written secondary serves the same data")

	err = app.AdvanceMigrationPhase(dualwrite.PhaseSecondaryOnly)
	require.ErrorIs(t, err, store.ErrInvalidTransition, "no bulk migration has verified yet")

	report, err := app.RunBulkMigration(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.PostsCopied)
	assert.Equal(t, int64(2), report.CommentsCopied)
	assert.False(t, report.Mismatch)

	require.NoError(t, app.AdvanceMigrationPhase(dualwrite.PhaseSecondaryOnly))
	assert.Equal(t, dualwrite.PhaseSecondaryOnly, app.GetMigrationPhase())

	// Writes now land on the secondary alone.
	_, err = app.CreatePost(ctx, "Dill pickles", "bob", "brine for a week")
	require.NoError(t, err)
	posts, err := app.ListPosts(ctx, store.ByCreatedAtDesc)
	require.NoError(t, err)
	assert.Len(t, posts, 4)

	require.NoError(t, app.RetirePrimary(ctx))
	stats, err := app.GetStoreStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Primary.Posts, "the primary's blog tables are gone")
	assert.Equal(t, int64(4), stats.Secondary.Posts)
	assert.False(t, stats.Consistent)

	// Rollback is unchecked; pointing reads at the now-empty primary is the
	// operator's own assertion.
	require.NoError(t, app.RollbackMigrationPhase(dualwrite.PhaseDualWritePrimaryRead))
	posts, err = app.ListPosts(ctx, store.ByCreatedAtDesc)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestRetireRequiresCutover(t *testing.T) {
	app := newTestApp(t, "dual_write_primary_read")
	err := app.RetirePrimary(context.Background())
	require.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestAddCommentToMissingPost(t *testing.T) {
	app := newTestApp(t, "dual_write_primary_read")
	_, err := app.AddComment(context.Background(), models.NewPostID(), "carol", "hello?")
	require.ErrorIs(t, err, store.ErrInvalid)
}

func TestUpdateCommentPartial(t *testing.T) {
	app := newTestApp(t, "dual_write_primary_read")
	ctx := context.Background()

	post, err := app.CreatePost(ctx, "t", "alice", "c")
	require.NoError(t, err)
	comment, err := app.AddComment(ctx, post.ID, "carol", "first draft")
	require.NoError(t, err)

	edited, err := app.UpdateComment(ctx, comment.ID, blogapp.CommentFields{Body: strptr("second draft")})
	require.NoError(t, err)
	assert.Equal(t, "second draft", edited.Body)
	assert.Equal(t, "carol", edited.Commenter)
	assert.Equal(t, post.ID, edited.PostID)
}

func TestDeletePostCascades(t *testing.T) {
	app := newTestApp(t, "dual_write_primary_read")
	ctx := context.Background()

	post, err := app.CreatePost(ctx, "t", "alice", "c")
	require.NoError(t, err)
	_, err = app.AddComment(ctx, post.ID, "carol", "hi")
	require.NoError(t, err)

	require.NoError(t, app.DeletePost(ctx, post.ID))
	_, err = app.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	comments, err := app.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestMainRunsCommands(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, blogapp.Main(ctx, []string{"-memory-only", "setup"}))
	assert.NoError(t, blogapp.Main(ctx, []string{"-memory-only", "phase"}))
	assert.NoError(t, blogapp.Main(ctx, []string{"-memory-only", "stats"}))
	assert.NoError(t, blogapp.Main(ctx, []string{"-memory-only", "migrate"}))
	assert.Error(t, blogapp.Main(ctx, []string{"frobnicate"}))
	assert.Error(t, blogapp.Main(ctx, []string{"-memory-only", "retire"}), "retire without confirmation must refuse")
}
