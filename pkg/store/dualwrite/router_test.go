package dualwrite_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youssef-Hossam5/Blog-app/pkg/models"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/dualwrite"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/memory"
)

type routerStack struct {
	primary   *memory.Store
	secondary *memory.Store
	phases    *dualwrite.Controller
	router    *dualwrite.Router
}

func newRouterStack(t *testing.T, phase dualwrite.Phase) *routerStack {
	t.Helper()
	s := &routerStack{
		primary:   memory.NewStore(),
		secondary: memory.NewStore(),
	}
	phases, err := dualwrite.NewController(phase, zerolog.Nop())
	require.NoError(t, err)
	s.phases = phases
	s.router = dualwrite.NewRouter(s.primary, s.secondary, s.phases, dualwrite.Options{})
	return s
}

// seedDivergent writes the same post ID to both stores with different titles
// so tests can tell which store answered.
func (s *routerStack) seedDivergent(t *testing.T) models.PostID {
	t.Helper()
	ctx := context.Background()
	id := models.NewPostID()
	now := time.Now()

	onPrimary := &models.Post{ID: id, Title: "primary copy", Content: "c", Author: "alice", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.primary.CreatePost(ctx, onPrimary))
	onSecondary := &models.Post{ID: id, Title: "secondary copy", Content: "c", Author: "alice", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.secondary.CreatePost(ctx, onSecondary))
	return id
}

func TestPrimaryReadPhaseServesPrimary(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWritePrimaryRead)
	id := s.seedDivergent(t)

	post, info, err := s.router.GetPost(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "primary copy", post.Title)
	assert.Equal(t, models.RolePrimary, info.Backend)
	assert.False(t, info.Fallback)
	assert.Zero(t, s.secondary.CallCount("GetPost"))
}

func TestSecondaryReadPhaseServesSecondary(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWriteSecondaryRead)
	id := s.seedDivergent(t)

	post, info, err := s.router.GetPost(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "secondary copy", post.Title)
	assert.Equal(t, models.RoleSecondary, info.Backend)
	assert.False(t, info.Fallback)
	assert.Zero(t, s.primary.CallCount("GetPost"))
}

func TestDeadSecondaryIsSkippedByThePing(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWriteSecondaryRead)
	id := s.seedDivergent(t)
	s.secondary.FailAll(store.ErrUnavailable)

	post, info, err := s.router.GetPost(context.Background(), id)
	require.NoError(t, err, "the fallback is transparent")
	assert.Equal(t, "primary copy", post.Title)
	assert.Equal(t, models.RolePrimary, info.Backend)
	assert.True(t, info.Fallback, "the detour is observable")
	assert.Zero(t, s.secondary.CallCount("GetPost"), "the failed ping spares the real read")
}

func TestFailedSecondaryReadFallsBack(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWriteSecondaryRead)
	id := s.seedDivergent(t)
	s.secondary.Fail("GetPost", store.ErrUnavailable)

	post, info, err := s.router.GetPost(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "primary copy", post.Title)
	assert.True(t, info.Fallback)
	assert.Equal(t, 1, s.secondary.CallCount("GetPost"), "the ping passed, the read itself failed")
}

func TestNotFoundDoesNotTriggerFallback(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWriteSecondaryRead)
	ctx := context.Background()

	// Present on the primary only: the secondary's NotFound is the answer.
	post := &models.Post{Title: "not yet copied", Content: "c", Author: "alice"}
	require.NoError(t, s.primary.CreatePost(ctx, post))

	_, info, err := s.router.GetPost(ctx, post.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, models.RoleSecondary, info.Backend)
	assert.Zero(t, s.primary.CallCount("GetPost"))
}

func TestListPostsDuringSecondaryOutage(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post := &models.Post{Title: "kept", Content: "c", Author: "alice"}
	require.NoError(t, s.primary.CreatePost(ctx, post))
	s.secondary.FailAll(store.ErrUnavailable)

	posts, info, err := s.router.ListPosts(ctx, store.ByCreatedAtDesc)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.False(t, info.Fallback)
	assert.Zero(t, s.secondary.CallCount("ListPosts"))
	assert.Zero(t, s.secondary.CallCount("Ping"), "primary-read phase does not even probe the secondary")

	// The same outage in the secondary-read phase turns into a transparent
	// fallback instead of an error.
	require.NoError(t, s.phases.Advance(dualwrite.PhaseDualWriteSecondaryRead))
	posts, info, err = s.router.ListPosts(ctx, store.ByCreatedAtDesc)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "kept", posts[0].Title)
	assert.Equal(t, models.RolePrimary, info.Backend)
	assert.True(t, info.Fallback)
	assert.Zero(t, s.secondary.CallCount("ListPosts"), "the failed ping spares the real read")
}

func TestBothStoresFailingSurfacesBothErrors(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWriteSecondaryRead)
	id := s.seedDivergent(t)
	s.secondary.FailAll(store.ErrUnavailable)
	s.primary.Fail("GetPost", store.ErrUnavailable)

	_, info, err := s.router.GetPost(context.Background(), id)
	require.ErrorIs(t, err, store.ErrUnavailable)
	assert.Contains(t, err.Error(), "both stores failed")
	assert.True(t, info.Fallback)
}

func TestSecondaryOnlyReadFailureSurfaces(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseSecondaryOnly)
	id := s.seedDivergent(t)
	s.secondary.Fail("GetPost", store.ErrUnavailable)

	_, info, err := s.router.GetPost(context.Background(), id)
	require.ErrorIs(t, err, store.ErrUnavailable, "no fallback once the primary may be gone")
	assert.Equal(t, models.RoleSecondary, info.Backend)
	assert.Zero(t, s.primary.CallCount("GetPost"))
}

func TestListPostsOrdering(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	base := time.Now()
	for i, title := range []string{"banana", "Apple", "cherry"} {
		post := &models.Post{
			Title:     title,
			Content:   "c",
			Author:    "alice",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.primary.CreatePost(ctx, post))
	}

	byTitle, _, err := s.router.ListPosts(ctx, store.ByTitleAlphaCI)
	require.NoError(t, err)
	require.Len(t, byTitle, 3)
	assert.Equal(t, "Apple", byTitle[0].Title, "title order ignores case")
	assert.Equal(t, "banana", byTitle[1].Title)
	assert.Equal(t, "cherry", byTitle[2].Title)

	byAge, _, err := s.router.ListPosts(ctx, store.ByCreatedAtDesc)
	require.NoError(t, err)
	require.Len(t, byAge, 3)
	assert.Equal(t, "cherry", byAge[0].Title, "newest first")
	assert.Equal(t, "banana", byAge[2].Title)

	_, _, err = s.router.ListPosts(ctx, store.SortSpec("by_upvotes"))
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestAuthorCountsComeFromTheRoutedStore(t *testing.T) {
	s := newRouterStack(t, dualwrite.PhaseDualWriteSecondaryRead)
	ctx := context.Background()

	for _, author := range []string{"alice", "alice", "bob"} {
		post := &models.Post{Title: "t", Content: "c", Author: author}
		require.NoError(t, s.secondary.CreatePost(ctx, post))
	}
	// A different census on the primary tells the stores apart.
	require.NoError(t, s.primary.CreatePost(ctx, &models.Post{Title: "t", Content: "c", Author: "mallory"}))

	counts, info, err := s.router.CountPostsByAuthor(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecondary, info.Backend)
	assert.Equal(t, map[string]int64{"alice": 2, "bob": 1}, counts)
	assert.Equal(t, 1, s.secondary.CallCount("CountPostsByAuthor"))
	assert.Zero(t, s.primary.CallCount("CountPostsByAuthor"))
}
