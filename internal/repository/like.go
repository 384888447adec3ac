package repository

import (
	"context"
	"errors"
	"fmt"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// LikeRepository defines persistence operations for likes.
type LikeRepository interface {
	Find(ctx context.Context, userID, postID uint) (*models.Like, error)
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, userID, postID uint) error
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Find returns a NotFound AppError when the user has not liked the post.
func (r *likeRepository) Find(ctx context.Context, userID, postID uint) (*models.Like, error) {
	var like models.Like
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Like", fmt.Sprintf("user=%d post=%d", userID, postID))
		}
		return nil, models.NewInternalError(err)
	}
	return &like, nil
}

// Create inserts the like; a duplicate (user, post) pair becomes a Conflict AppError.
func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Create(like).Error; err != nil {
		if IsUniqueViolation(err) {
			return models.NewConflictError("Post already liked")
		}
		return models.NewInternalError(fmt.Errorf("create like: %w", err))
	}
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, userID, postID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if result.Error != nil {
		return models.NewInternalError(fmt.Errorf("delete like: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Like", fmt.Sprintf("user=%d post=%d", userID, postID))
	}
	return nil
}

func (r *likeRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Like{})
	if result.Error != nil {
		return 0, models.NewInternalError(fmt.Errorf("delete likes for post %d: %w", postID, result.Error))
	}
	return result.RowsAffected, nil
}

func (r *likeRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
