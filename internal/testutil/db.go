// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"ripple/internal/database"
	"ripple/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory sqlite database. The pool is pinned to one
// connection because every sqlite memory connection is a separate database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with a unique email derived from the username.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "hashed",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post owned by ownerID.
func CreatePost(t testing.TB, db *gorm.DB, ownerID uint, title string) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, Content: title + " body", UserID: ownerID}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreatePostAt inserts a post with an explicit creation time.
func CreatePostAt(t testing.TB, db *gorm.DB, ownerID uint, title string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, Content: title + " body", UserID: ownerID, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, db.Create(p).Error)
	return p
}
