package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ripple/internal/models"
	"ripple/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{Title: "Test Post", Content: "Content", UserID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByIDDerivedAttributes(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "hello")

	require.NoError(t, db.Create(&models.Like{UserID: bob.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: bob.ID, PostID: post.ID, Content: "hi"}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: alice.ID, PostID: post.ID, Content: "thanks"}).Error)

	asBob, err := repo.GetByID(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", asBob.Username)
	assert.Equal(t, 1, asBob.LikesCount)
	assert.Equal(t, 2, asBob.CommentsCount)
	assert.True(t, asBob.Liked)

	asAlice, err := repo.GetByID(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, asAlice.Liked)

	anon, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon.Liked)
	assert.Equal(t, 1, anon.LikesCount)

	_, err = repo.GetByID(ctx, 9999, 0)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListNewestFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	base := time.Now().Add(-time.Hour)
	testutil.CreatePostAt(t, db, alice.ID, "first", base)
	testutil.CreatePostAt(t, db, bob.ID, "second", base.Add(time.Minute))
	testutil.CreatePostAt(t, db, alice.ID, "third", base.Add(2*time.Minute))

	posts, err := repo.List(ctx, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "third", posts[0].Title)
	assert.Equal(t, "second", posts[1].Title)

	page2, err := repo.List(ctx, 2, 2, 0)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "first", page2[0].Title)

	mine, err := repo.GetByUserID(ctx, alice.ID, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "third", mine[0].Title)
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice.ID, "hello")

	post.Title = "edited"
	require.NoError(t, repo.Update(ctx, post))

	stored, err := repo.Find(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Title)

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err = repo.Find(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = repo.Delete(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
