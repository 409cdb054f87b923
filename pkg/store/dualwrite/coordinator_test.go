package dualwrite_test

import (
	"context"
	"fmt"
	"sync"
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

// stack is a complete dual-write setup over two in-memory stores.
type stack struct {
	primary   *memory.Store
	secondary *memory.Store
	ledger    *memory.Ledger
	phases    *dualwrite.Controller
	coord     *dualwrite.Coordinator
}

func newStack(t *testing.T, phase dualwrite.Phase) *stack {
	t.Helper()
	s := &stack{
		primary:   memory.NewStore(),
		secondary: memory.NewStore(),
		ledger:    memory.NewLedger(),
	}
	phases, err := dualwrite.NewController(phase, zerolog.Nop())
	require.NoError(t, err)
	s.phases = phases
	s.coord = dualwrite.NewCoordinator(s.primary, s.secondary, s.phases, s.ledger, dualwrite.Options{})
	return s
}

func (s *stack) outcomes(t *testing.T) []models.WriteOutcome {
	t.Helper()
	outcomes, err := s.ledger.Outcomes(context.Background(), time.Time{})
	require.NoError(t, err)
	return outcomes
}

func makePost(title string) *models.Post {
	return &models.Post{Title: title, Content: "content of " + title, Author: "alice"}
}

func TestCreatePostWritesBothStores(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post := makePost("hello")
	receipt, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err)
	assert.True(t, receipt.Consistent())
	assert.False(t, post.ID.IsZero(), "coordinator assigns the identity")
	assert.False(t, post.CreatedAt.IsZero())

	fromPrimary, err := s.primary.GetPost(ctx, post.ID)
	require.NoError(t, err)
	fromSecondary, err := s.secondary.GetPost(ctx, post.ID)
	require.NoError(t, err)

	assert.Equal(t, fromPrimary.ID, fromSecondary.ID, "stores agree on identity")
	assert.Equal(t, fromPrimary.Title, fromSecondary.Title)
	assert.True(t, fromPrimary.CreatedAt.Equal(fromSecondary.CreatedAt), "stores agree on created_at")

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.Equal(t, models.KindPost, o.Kind)
	assert.Equal(t, models.OpCreate, o.Op)
	assert.Equal(t, post.ID.String(), o.EntityID)
	assert.True(t, o.Primary.Attempted)
	assert.True(t, o.Primary.OK)
	assert.True(t, o.Secondary.Attempted)
	assert.True(t, o.Secondary.OK)
}

func TestSecondaryFailureDoesNotFailTheMutation(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()
	s.secondary.Fail("CreatePost", store.ErrUnavailable)

	post := makePost("resilient")
	receipt, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err, "the caller's write committed on the primary")
	assert.False(t, receipt.Consistent())

	_, err = s.primary.GetPost(ctx, post.ID)
	assert.NoError(t, err)
	_, err = s.secondary.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "secondary missed the write")

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Primary.OK)
	assert.True(t, outcomes[0].Secondary.Attempted)
	assert.False(t, outcomes[0].Secondary.OK)
	assert.Equal(t, store.ClassUnavailable, outcomes[0].Secondary.ErrorClass)
}

func TestPrimaryFailureRejectsMutationAndSkipsSecondary(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()
	s.primary.FailAll(store.ErrUnavailable)

	post := makePost("doomed")
	receipt, err := s.coord.CreatePost(ctx, post)
	require.ErrorIs(t, err, store.ErrPrimaryUnavailable)
	assert.False(t, receipt.Consistent())

	assert.Zero(t, s.secondary.CallCount("CreatePost"), "secondary must never run ahead of the primary")

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, 1, "failed attempts are recorded too")
	assert.True(t, outcomes[0].Primary.Attempted)
	assert.False(t, outcomes[0].Primary.OK)
	assert.False(t, outcomes[0].Secondary.Attempted)
}

func TestSecondaryOnlyPhaseWritesSecondaryAlone(t *testing.T) {
	s := newStack(t, dualwrite.PhaseSecondaryOnly)
	ctx := context.Background()

	post := makePost("post-cutover")
	_, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err)

	assert.Zero(t, s.primary.CallCount("CreatePost"), "primary is out of the write path")
	_, err = s.secondary.GetPost(ctx, post.ID)
	assert.NoError(t, err)

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Primary.Attempted)
	assert.True(t, outcomes[0].Secondary.Attempted)
	assert.True(t, outcomes[0].Secondary.OK)
}

func TestSecondaryOnlyPhaseAuthorityFailure(t *testing.T) {
	s := newStack(t, dualwrite.PhaseSecondaryOnly)
	ctx := context.Background()
	s.secondary.FailAll(store.ErrUnavailable)

	_, err := s.coord.CreatePost(ctx, makePost("nope"))
	require.ErrorIs(t, err, store.ErrPrimaryUnavailable,
		"in secondary_only the secondary is the authority, with the same failure policy")
	assert.Zero(t, s.primary.CallCount("CreatePost"))
}

func TestUpdatePostMergesAndPreservesCreatedAt(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post := makePost("first title")
	_, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err)
	createdAt := post.CreatedAt

	update := &models.Post{ID: post.ID, Title: "second title", Content: post.Content, Author: post.Author}
	receipt, err := s.coord.UpdatePost(ctx, update)
	require.NoError(t, err)
	assert.True(t, receipt.Consistent())
	assert.True(t, createdAt.Equal(update.CreatedAt), "created_at survives updates")
	assert.False(t, update.UpdatedAt.Before(createdAt))

	for _, backend := range []store.Backend{s.primary, s.secondary} {
		got, err := backend.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "second title", got.Title)
		assert.True(t, createdAt.Equal(got.CreatedAt))
	}
}

func TestUpdateNonexistentPostIsNotFound(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)

	ghost := makePost("ghost")
	ghost.ID = models.NewPostID()
	_, err := s.coord.UpdatePost(context.Background(), ghost)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, s.outcomes(t), "nothing was attempted, nothing is recorded")
}

func TestValidationRejectsBeforeAnyStoreIsTouched(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)

	_, err := s.coord.CreatePost(context.Background(), &models.Post{Title: "  ", Content: "c", Author: "a"})
	require.ErrorIs(t, err, store.ErrInvalid)
	assert.Zero(t, s.primary.CallCount("CreatePost"))
	assert.Zero(t, s.secondary.CallCount("CreatePost"))
	assert.Empty(t, s.outcomes(t))
}

func TestDuplicateIdentitySurfacesConflict(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post := makePost("one of a kind")
	_, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err)

	dupe := makePost("one of a kind")
	dupe.ID = post.ID
	_, err = s.coord.CreatePost(ctx, dupe)
	require.ErrorIs(t, err, store.ErrConflict)

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, 2)
	assert.Equal(t, store.ClassConflict, outcomes[1].Primary.ErrorClass)
	assert.False(t, outcomes[1].Secondary.Attempted)
}

func TestDeletePostCascadesOnBothStores(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post := makePost("parent")
	_, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		comment := &models.Comment{PostID: post.ID, Commenter: "bob", Body: fmt.Sprintf("comment %d", i)}
		_, err := s.coord.CreateComment(ctx, comment)
		require.NoError(t, err)
	}

	_, err = s.coord.DeletePost(ctx, post.ID)
	require.NoError(t, err)

	for _, backend := range []store.Backend{s.primary, s.secondary} {
		_, err := backend.GetPost(ctx, post.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		n, err := backend.CountComments(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "comments go with their post")
	}
}

func TestDeleteNonexistentPostIsNotFound(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	_, err := s.coord.DeletePost(context.Background(), models.NewPostID())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateCommentRequiresExistingParent(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)

	comment := &models.Comment{PostID: models.NewPostID(), Commenter: "bob", Body: "orphan"}
	_, err := s.coord.CreateComment(context.Background(), comment)
	require.ErrorIs(t, err, store.ErrInvalid)
	assert.Empty(t, s.outcomes(t))
}

func TestCommentParentIsImmutable(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post1 := makePost("post one")
	post2 := makePost("post two")
	_, err := s.coord.CreatePost(ctx, post1)
	require.NoError(t, err)
	_, err = s.coord.CreatePost(ctx, post2)
	require.NoError(t, err)

	comment := &models.Comment{PostID: post1.ID, Commenter: "bob", Body: "hi"}
	_, err = s.coord.CreateComment(ctx, comment)
	require.NoError(t, err)

	moved := &models.Comment{ID: comment.ID, PostID: post2.ID, Commenter: "bob", Body: "moved?"}
	_, err = s.coord.UpdateComment(ctx, moved)
	require.ErrorIs(t, err, store.ErrInvalid)

	// Leaving the parent zero means "keep it".
	edited := &models.Comment{ID: comment.ID, Commenter: "bob", Body: "edited"}
	_, err = s.coord.UpdateComment(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, post1.ID, edited.PostID)
}

func TestEveryAttemptAppendsExactlyOneOutcome(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	post := makePost("counted")
	_, err := s.coord.CreatePost(ctx, post)
	require.NoError(t, err)

	s.secondary.Fail("UpdatePost", store.ErrUnavailable)
	update := &models.Post{ID: post.ID, Title: "counted again", Content: post.Content, Author: post.Author}
	_, err = s.coord.UpdatePost(ctx, update)
	require.NoError(t, err)

	s.primary.Fail("DeletePost", store.ErrUnavailable)
	_, err = s.coord.DeletePost(ctx, post.ID)
	require.ErrorIs(t, err, store.ErrPrimaryUnavailable)

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, 3, "success, partial failure and rejected attempt each record once")
	for i, o := range outcomes {
		assert.Equal(t, uint64(i+1), o.Seq, "sequence numbers follow append order")
	}
}

func TestConcurrentCreatesAllLand(t *testing.T) {
	s := newStack(t, dualwrite.PhaseDualWritePrimaryRead)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.coord.CreatePost(ctx, makePost(fmt.Sprintf("post %02d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, backend := range []store.Backend{s.primary, s.secondary} {
		count, err := backend.CountPosts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(n), count)
	}

	outcomes := s.outcomes(t)
	require.Len(t, outcomes, n)
	for i := 1; i < len(outcomes); i++ {
		assert.Greater(t, outcomes[i].Seq, outcomes[i-1].Seq, "appends keep a total order")
	}
}
