package models

import "time"

// EventKind identifies a domain event variant.
type EventKind string

const (
	EventCommentPosted EventKind = "comment_posted"
	EventPostLiked     EventKind = "post_liked"
	EventPostUnliked   EventKind = "post_unliked"
)

// Event describes an engagement on a post. It is never stored on its own;
// the notification it produces is.
type Event struct {
	Kind          EventKind
	ActorID       uint
	ActorUsername string
	RecipientID   uint
	PostID        uint
	CommentID     uint
	Content       string
	OccurredAt    time.Time
}

// Action returns the notification action for the event kind.
func (e Event) Action() NotificationAction {
	switch e.Kind {
	case EventCommentPosted:
		return ActionComment
	case EventPostUnliked:
		return ActionUnlike
	default:
		return ActionLike
	}
}

// SelfInflicted reports whether the actor engaged with their own post.
func (e Event) SelfInflicted() bool {
	return e.ActorID == e.RecipientID
}

// NewCommentPosted builds the event raised after a comment is stored.
func NewCommentPosted(comment *Comment, actorUsername string, postOwnerID uint) Event {
	return Event{
		Kind:          EventCommentPosted,
		ActorID:       comment.UserID,
		ActorUsername: actorUsername,
		RecipientID:   postOwnerID,
		PostID:        comment.PostID,
		CommentID:     comment.ID,
		Content:       comment.Content,
		OccurredAt:    comment.CreatedAt,
	}
}

// NewPostLiked builds the event raised after a like is stored.
func NewPostLiked(actorID uint, actorUsername string, postOwnerID, postID uint) Event {
	return Event{
		Kind:          EventPostLiked,
		ActorID:       actorID,
		ActorUsername: actorUsername,
		RecipientID:   postOwnerID,
		PostID:        postID,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewPostUnliked builds the event raised after a like is removed.
func NewPostUnliked(actorID uint, actorUsername string, postOwnerID, postID uint) Event {
	return Event{
		Kind:          EventPostUnliked,
		ActorID:       actorID,
		ActorUsername: actorUsername,
		RecipientID:   postOwnerID,
		PostID:        postID,
		OccurredAt:    time.Now().UTC(),
	}
}
