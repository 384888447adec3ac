package repository

import (
	"context"
	"fmt"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(fmt.Errorf("create comment: %w", err))
	}
	return nil
}

// ListByPost returns a page of the post's comments, newest first, with author usernames.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("comments.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at DESC, comments.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("list comments for post %d: %w", postID, err))
	}
	return comments, nil
}

func (r *commentRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{})
	if result.Error != nil {
		return 0, models.NewInternalError(fmt.Errorf("delete comments for post %d: %w", postID, result.Error))
	}
	return result.RowsAffected, nil
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
