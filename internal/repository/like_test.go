package repository

import (
	"context"
	"testing"

	"ripple/internal/models"
	"ripple/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_UniquePerUserAndPost(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "hello")

	require.NoError(t, repo.Create(ctx, &models.Like{UserID: bob.ID, PostID: post.ID}))

	err := repo.Create(ctx, &models.Like{UserID: bob.ID, PostID: post.ID})
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)

	require.NoError(t, repo.Create(ctx, &models.Like{UserID: alice.ID, PostID: post.ID}))

	n, err := repo.CountByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestLikeRepository_FindAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice.ID, "hello")

	_, err := repo.Find(ctx, alice.ID, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = repo.Delete(ctx, alice.ID, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	require.NoError(t, repo.Create(ctx, &models.Like{UserID: alice.ID, PostID: post.ID}))
	like, err := repo.Find(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, like.PostID)

	require.NoError(t, repo.Delete(ctx, alice.ID, post.ID))
	_, err = repo.Find(ctx, alice.ID, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
