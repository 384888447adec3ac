package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/repository"
	"ripple/internal/storage"
	"ripple/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	store  *repository.Store
	images storage.ImageStore
}

type CreatePostInput struct {
	UserID   uint
	Title    string
	Content  string
	ImageURL string
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
}

// UpdatePostInput carries a partial update; empty fields are left unchanged.
type UpdatePostInput struct {
	PostID   uint
	ActorID  uint
	Title    string
	Content  string
	ImageURL string
}

// NewPostService creates the service. images may be nil, in which case image files are never removed.
func NewPostService(store *repository.Store, images storage.ImageStore) *PostService {
	return &PostService{store: store, images: images}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidatePostText(in.Title, in.Content, false); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.checkImageOwner(ctx, in.ImageURL, in.UserID); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		UserID:   in.UserID,
	}
	if err := s.store.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.store.Posts.GetByID(ctx, post.ID, in.UserID)
}

// GetPost returns the post with its counts as of this read.
func (s *PostService) GetPost(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.store.Posts.GetByID(ctx, id, currentUserID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	posts, err := s.store.Posts.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// GetUserPosts lists one user's posts; NotFound when the user does not exist.
func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	posts, err := s.store.Posts.GetByUserID(ctx, userID, limit, offset, currentUserID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// UpdatePost applies the non-empty fields of in. Only the owner may update a post.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "posts.update",
		attribute.Int64("post.id", int64(in.PostID)),
		attribute.Int64("actor.id", int64(in.ActorID)),
	)
	defer func() {
		recordOutcome("update_post", err)
		observability.EndSpan(span, err)
	}()

	if err := validation.ValidatePostText(in.Title, in.Content, true); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	current, err := s.store.Posts.Find(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if current.UserID != in.ActorID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}
	if in.ImageURL != current.ImageURL {
		if err := s.checkImageOwner(ctx, in.ImageURL, in.ActorID); err != nil {
			return nil, err
		}
	}

	previousImage := current.ImageURL
	if in.Title != "" {
		current.Title = in.Title
	}
	if in.Content != "" {
		current.Content = in.Content
	}
	if in.ImageURL != "" {
		current.ImageURL = in.ImageURL
	}

	if err := s.store.Posts.Update(ctx, current); err != nil {
		return nil, err
	}
	if previousImage != "" && previousImage != current.ImageURL {
		s.removeImage(ctx, previousImage, current.UserID)
	}

	return s.store.Posts.GetByID(ctx, in.PostID, in.ActorID)
}

// DeletePost removes the post with its likes and comments in one transaction, then
// removes its image file. Only the owner may delete a post.
func (s *PostService) DeletePost(ctx context.Context, postID, actorID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "posts.delete",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("actor.id", int64(actorID)),
	)
	defer func() {
		recordOutcome("delete_post", err)
		observability.EndSpan(span, err)
	}()

	var imageURL string
	err = s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		post, err := tx.Posts.Find(ctx, postID)
		if err != nil {
			return err
		}
		if post.UserID != actorID {
			return models.NewForbiddenError("You can only delete your own posts")
		}
		imageURL = post.ImageURL

		likes, err := tx.Likes.DeleteByPost(ctx, postID)
		if err != nil {
			return err
		}
		comments, err := tx.Comments.DeleteByPost(ctx, postID)
		if err != nil {
			return err
		}
		observability.Logger.DebugContext(ctx, "cascading post delete",
			slog.Uint64("post_id", uint64(postID)),
			slog.Int64("likes", likes),
			slog.Int64("comments", comments),
		)
		return tx.Posts.Delete(ctx, postID)
	})
	if err != nil {
		return err
	}

	if imageURL != "" {
		s.removeImage(ctx, imageURL, actorID)
	}
	return nil
}

// UploadImage stores the file and records the uploader as its owner.
func (s *PostService) UploadImage(ctx context.Context, ownerID uint, in storage.Upload) (string, error) {
	if s.images == nil {
		return "", models.NewInternalError(errors.New("image storage is not configured"))
	}
	url, err := s.images.Save(ctx, in)
	if err != nil {
		return "", err
	}
	if err := s.store.Images.Create(ctx, &models.Image{UserID: ownerID, URL: url}); err != nil {
		if rmErr := s.images.Remove(ctx, url); rmErr != nil {
			observability.Logger.WarnContext(ctx, "failed to remove unrecorded image",
				slog.String("image_url", url),
				slog.String("error", rmErr.Error()),
			)
		}
		return "", err
	}
	return url, nil
}

// checkImageOwner accepts empty and external URLs. A local upload must belong to userID.
func (s *PostService) checkImageOwner(ctx context.Context, url string, userID uint) error {
	if url == "" || !strings.HasPrefix(url, storage.PublicPrefix) {
		return nil
	}
	image, err := s.store.Images.GetByURL(ctx, url)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewValidationError("image_url must reference an image you uploaded")
		}
		return err
	}
	if image.UserID != userID {
		return models.NewValidationError("image_url must reference an image you uploaded")
	}
	return nil
}

// removeImage deletes a local upload owned by ownerID once no post references it.
func (s *PostService) removeImage(ctx context.Context, url string, ownerID uint) {
	if s.images == nil || !strings.HasPrefix(url, storage.PublicPrefix) {
		return
	}
	image, err := s.store.Images.GetByURL(ctx, url)
	if err != nil || image.UserID != ownerID {
		observability.Logger.DebugContext(ctx, "keeping image not owned by post owner",
			slog.String("image_url", url),
			slog.Uint64("owner_id", uint64(ownerID)),
		)
		return
	}
	refs, err := s.store.Posts.CountByImage(ctx, url)
	if err != nil || refs > 0 {
		return
	}

	if err := s.images.Remove(ctx, url); err != nil {
		observability.Logger.WarnContext(ctx, "failed to remove post image",
			slog.String("image_url", url),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.store.Images.DeleteByURL(ctx, url); err != nil {
		observability.Logger.WarnContext(ctx, "failed to delete image record",
			slog.String("image_url", url),
			slog.String("error", err.Error()),
		)
	}
}
