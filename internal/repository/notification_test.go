package repository

import (
	"context"
	"testing"

	"ripple/internal/models"
	"ripple/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_ReadFlow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "hello")

	for _, action := range []models.NotificationAction{models.ActionLike, models.ActionComment} {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID:  alice.ID,
			ActorID: bob.ID,
			PostID:  post.ID,
			Action:  action,
			Message: "bob did " + string(action),
		}))
	}

	unread, err := repo.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	list, err := repo.ListForUser(ctx, alice.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.ActionComment, list[0].Action)

	// Another user's notification is indistinguishable from a missing one.
	err = repo.MarkRead(ctx, list[0].ID, bob.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	require.NoError(t, repo.MarkRead(ctx, list[0].ID, alice.ID))
	onlyUnread, err := repo.ListForUser(ctx, alice.ID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyUnread, 1)
	assert.Equal(t, models.ActionLike, onlyUnread[0].Action)

	n, err := repo.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err = repo.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	empty, err := repo.ListForUser(ctx, bob.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
