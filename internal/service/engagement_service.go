package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/repository"
	"ripple/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Notifier records the notification for an event inside a transaction and, after commit,
// pushes it to the recipient's live channel. *notifications.Dispatcher implements it.
type Notifier interface {
	Persist(ctx context.Context, tx *repository.Store, ev models.Event) (*models.Notification, error)
	Push(ev models.Event, n *models.Notification) bool
}

// EngagementService handles comments and likes. Every mutation stores its notification
// in the same transaction, so a failed notification rolls the mutation back.
type EngagementService struct {
	store    *repository.Store
	notifier Notifier
}

type AddCommentInput struct {
	PostID  uint
	ActorID uint
	Content string
}

func NewEngagementService(store *repository.Store, notifier Notifier) *EngagementService {
	return &EngagementService{store: store, notifier: notifier}
}

// AddComment stores a comment on the post and notifies the post owner.
func (s *EngagementService) AddComment(ctx context.Context, in AddCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.add_comment",
		attribute.Int64("post.id", int64(in.PostID)),
		attribute.Int64("actor.id", int64(in.ActorID)),
	)
	defer func() {
		recordOutcome("add_comment", err)
		observability.EndSpan(span, err)
	}()

	if err := validation.ValidateComment(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var (
		ev models.Event
		n  *models.Notification
	)
	err = s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		post, err := tx.Posts.Find(ctx, in.PostID)
		if err != nil {
			return err
		}
		actor, err := tx.Users.GetByID(ctx, in.ActorID)
		if err != nil {
			return err
		}

		comment = &models.Comment{
			Content: in.Content,
			UserID:  in.ActorID,
			PostID:  in.PostID,
		}
		if err := tx.Comments.Create(ctx, comment); err != nil {
			return err
		}
		comment.Username = actor.Username

		ev = models.NewCommentPosted(comment, actor.Username, post.UserID)
		n, err = s.notifier.Persist(ctx, tx, ev)
		return asPersistenceFailure(err)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Push(ev, n)
	return comment, nil
}

// LikePost records the actor's like and notifies the post owner. A second like by the
// same actor is a Conflict.
func (s *EngagementService) LikePost(ctx context.Context, postID, actorID uint) (like *models.Like, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.like_post",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("actor.id", int64(actorID)),
	)
	defer func() {
		recordOutcome("like", err)
		observability.EndSpan(span, err)
	}()

	var (
		ev models.Event
		n  *models.Notification
	)
	err = s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		post, err := tx.Posts.Find(ctx, postID)
		if err != nil {
			return err
		}
		actor, err := tx.Users.GetByID(ctx, actorID)
		if err != nil {
			return err
		}

		existing, err := tx.Likes.Find(ctx, actorID, postID)
		switch {
		case existing != nil:
			return models.NewConflictError("Post already liked")
		case err != nil && !models.IsCode(err, models.CodeNotFound):
			return err
		}

		// The unique index still guards a concurrent insert that passed the check above.
		like = &models.Like{UserID: actorID, PostID: postID}
		if err := tx.Likes.Create(ctx, like); err != nil {
			return err
		}

		ev = models.NewPostLiked(actorID, actor.Username, post.UserID, postID)
		n, err = s.notifier.Persist(ctx, tx, ev)
		return asPersistenceFailure(err)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) && !models.IsCode(err, models.CodeConflict) {
			err = models.NewConflictError("Post already liked")
		}
		return nil, err
	}

	s.notifier.Push(ev, n)
	return like, nil
}

// UnlikePost removes the actor's like and notifies the post owner.
func (s *EngagementService) UnlikePost(ctx context.Context, postID, actorID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "engagement.unlike_post",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("actor.id", int64(actorID)),
	)
	defer func() {
		recordOutcome("unlike", err)
		observability.EndSpan(span, err)
	}()

	var (
		ev models.Event
		n  *models.Notification
	)
	err = s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		post, err := tx.Posts.Find(ctx, postID)
		if err != nil {
			return err
		}
		actor, err := tx.Users.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if err := tx.Likes.Delete(ctx, actorID, postID); err != nil {
			return err
		}

		ev = models.NewPostUnliked(actorID, actor.Username, post.UserID, postID)
		n, err = s.notifier.Persist(ctx, tx, ev)
		return asPersistenceFailure(err)
	})
	if err != nil {
		return err
	}

	s.notifier.Push(ev, n)
	return nil
}

// ListComments returns the post's comments newest first with their authors' usernames.
func (s *EngagementService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.store.Posts.Find(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments.ListByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}
