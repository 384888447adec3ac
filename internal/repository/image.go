package repository

import (
	"context"
	"errors"
	"fmt"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// ImageRepository defines storage operations for uploaded image metadata.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByURL(ctx context.Context, url string) (*models.Image, error)
	DeleteByURL(ctx context.Context, url string) error
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a repository implementation for image metadata.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		return models.NewInternalError(fmt.Errorf("create image: %w", err))
	}
	return nil
}

func (r *imageRepository) GetByURL(ctx context.Context, url string) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Image", url)
		}
		return nil, models.NewInternalError(fmt.Errorf("load image: %w", err))
	}
	return &image, nil
}

func (r *imageRepository) DeleteByURL(ctx context.Context, url string) error {
	if err := r.db.WithContext(ctx).Where("url = ?", url).Delete(&models.Image{}).Error; err != nil {
		return models.NewInternalError(fmt.Errorf("delete image: %w", err))
	}
	return nil
}
