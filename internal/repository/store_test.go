package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ripple/internal/models"
	"ripple/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"postgres 23505", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"mysql 1062", &mysql.MySQLError{Number: 1062}, true},
		{"sqlite message", errors.New("UNIQUE constraint failed: likes.user_id, likes.post_id"), true},
		{"unrelated", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestStore_WithTransactionRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	post := testutil.CreatePost(t, db, owner.ID, "p")

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(tx *Store) error {
		require.NoError(t, tx.Likes.Create(ctx, &models.Like{UserID: owner.ID, PostID: post.ID}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := store.Likes.CountByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_WithTransactionCommits(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	post := testutil.CreatePost(t, db, owner.ID, "p")

	require.NoError(t, store.WithTransaction(ctx, func(tx *Store) error {
		return tx.Likes.Create(ctx, &models.Like{UserID: owner.ID, PostID: post.ID})
	}))

	_, err := store.Likes.Find(ctx, owner.ID, post.ID)
	assert.NoError(t, err)
}

func TestStore_WithTransactionSQLShape(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "likes" WHERE post_id = \$1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "comments" WHERE post_id = \$1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTransaction(context.Background(), func(tx *Store) error {
		if _, err := tx.Likes.DeleteByPost(context.Background(), 7); err != nil {
			return err
		}
		_, err := tx.Comments.DeleteByPost(context.Background(), 7)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
