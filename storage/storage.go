// Package storage defines the persistence contract shared by the in-memory
// and SQL backends.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"socialhub/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid request")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id uint) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id uint, patch models.UserPatch) (models.User, error)
	SetVerified(ctx context.Context, id uint, verified bool) (models.User, error)
	// DeleteUser removes the user with everything they authored and
	// corrects the counters of the users and posts they interacted with.
	DeleteUser(ctx context.Context, id uint) error
}

// PostStore persists posts and the like/share relations on them.
type PostStore interface {
	CreatePost(ctx context.Context, p models.Post) (models.Post, error)
	// GetPosts returns every post newest first, joined with its owner and
	// comments. viewerID drives IsLiked; zero means anonymous.
	GetPosts(ctx context.Context, viewerID uint) ([]models.Post, error)
	GetPost(ctx context.Context, id, viewerID uint) (models.Post, error)
	GetUserPosts(ctx context.Context, userID, viewerID uint) ([]models.Post, error)
	DeletePost(ctx context.Context, id uint) error
	TogglePostLike(ctx context.Context, postID, userID uint) (models.LikeResult, error)
	SharePost(ctx context.Context, postID, userID uint) (models.ShareResult, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	GetComments(ctx context.Context, postID, viewerID uint) ([]models.Comment, error)
	ToggleCommentLike(ctx context.Context, commentID, userID uint) (models.LikeResult, error)
	DeleteComment(ctx context.Context, id uint) error
}

type StoryStore interface {
	CreateStory(ctx context.Context, s models.Story) (models.Story, error)
	GetStories(ctx context.Context) ([]models.Story, error)
	MarkStoryViewed(ctx context.Context, id uint) (models.Story, error)
	DeleteStory(ctx context.Context, id uint) error
	// DeleteStoriesBefore removes stories posted before cutoff and reports
	// how many were removed.
	DeleteStoriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type FollowStore interface {
	// FollowUser toggles the follow relation from followerID to followeeID.
	FollowUser(ctx context.Context, followerID, followeeID uint) (models.FollowResult, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
}

type MessageStore interface {
	SendMessage(ctx context.Context, m models.Message) (models.Message, error)
	GetConversation(ctx context.Context, userID, otherID uint) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, readerID, otherID uint) (int64, error)
	ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error)
}

type AdminStore interface {
	Stats(ctx context.Context) (models.Stats, error)
}

// Storage is the full persistence surface used by the HTTP handlers.
type Storage interface {
	UserStore
	PostStore
	CommentStore
	StoryStore
	FollowStore
	MessageStore
	AdminStore

	Ping(ctx context.Context) error
	Close() error
}

// Conversations groups msgs (oldest first) into one summary per partner of
// userID, most recent thread first. Partners missing from users are skipped.
func Conversations(userID uint, msgs []models.Message, users map[uint]models.User) []models.Conversation {
	byPartner := make(map[uint]*models.Conversation)
	for _, m := range msgs {
		partner := m.SenderID
		if partner == userID {
			partner = m.ReceiverID
		}
		conv, ok := byPartner[partner]
		if !ok {
			u, found := users[partner]
			if !found {
				continue
			}
			conv = &models.Conversation{Partner: u}
			byPartner[partner] = conv
		}
		conv.LastMessage = m
		if m.ReceiverID == userID && !m.IsRead {
			conv.Unread++
		}
	}

	out := make([]models.Conversation, 0, len(byPartner))
	for _, c := range byPartner {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
	return out
}
