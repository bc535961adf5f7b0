// Package memory is the default storage backend: plain maps guarded by one
// lock. A Store is created explicitly and lives as long as its owner keeps it.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"socialhub/models"
	"socialhub/storage"
)

type pair struct{ a, b uint }

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users    map[uint]models.User
	posts    map[uint]models.Post
	comments map[uint]models.Comment
	stories  map[uint]models.Story
	messages map[uint]models.Message

	postLikes    map[pair]time.Time // (post, user)
	postShares   map[pair]time.Time // (post, user)
	commentLikes map[pair]time.Time // (comment, user)
	follows      map[pair]time.Time // (follower, followee)

	lastUserID, lastPostID, lastCommentID, lastStoryID, lastMessageID uint
}

var _ storage.Storage = (*Store)(nil)

type Option func(*Store)

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		users:        make(map[uint]models.User),
		posts:        make(map[uint]models.Post),
		comments:     make(map[uint]models.Comment),
		stories:      make(map[uint]models.Story),
		messages:     make(map[uint]models.Message),
		postLikes:    make(map[pair]time.Time),
		postShares:   make(map[pair]time.Time),
		commentLikes: make(map[pair]time.Time),
		follows:      make(map[pair]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// --- users ------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return models.User{}, errors.Wrapf(storage.ErrConflict, "username %q taken", u.Username)
		}
	}
	s.lastUserID++
	u.ID = s.lastUserID
	if u.JoinDate.IsZero() {
		u.JoinDate = s.now().UTC()
	}
	u.IsOnline = false
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(id)
}

func (s *Store) userLocked(id uint) (models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return models.User{}, errors.Wrapf(storage.ErrNotFound, "user %d", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return models.User{}, errors.Wrapf(storage.ErrNotFound, "user %q", username)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uint, patch models.UserPatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.userLocked(id)
	if err != nil {
		return models.User{}, err
	}
	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Avatar != nil {
		u.Avatar = *patch.Avatar
	}
	if patch.Bio != nil {
		u.Bio = *patch.Bio
	}
	s.users[id] = u
	return u, nil
}

func (s *Store) SetVerified(ctx context.Context, id uint, verified bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.userLocked(id)
	if err != nil {
		return models.User{}, err
	}
	u.IsVerified = verified
	s.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.userLocked(id); err != nil {
		return err
	}

	for pid, p := range s.posts {
		if p.UserID == id {
			s.deletePostLocked(pid)
		}
	}
	for cid, c := range s.comments {
		if c.UserID == id {
			delete(s.comments, cid)
			s.dropCommentLikesLocked(cid)
		}
	}
	for k := range s.postLikes {
		if k.b == id {
			s.adjustPostLocked(k.a, -1, 0)
			delete(s.postLikes, k)
		}
	}
	for k := range s.postShares {
		if k.b == id {
			s.adjustPostLocked(k.a, 0, -1)
			delete(s.postShares, k)
		}
	}
	for k := range s.commentLikes {
		if k.b == id {
			if c, ok := s.comments[k.a]; ok {
				c.Likes--
				s.comments[k.a] = c
			}
			delete(s.commentLikes, k)
		}
	}
	for k := range s.follows {
		switch id {
		case k.a:
			s.adjustFollowLocked(k.b, -1, 0)
			delete(s.follows, k)
		case k.b:
			s.adjustFollowLocked(k.a, 0, -1)
			delete(s.follows, k)
		}
	}
	for sid, st := range s.stories {
		if st.UserID == id {
			delete(s.stories, sid)
		}
	}
	for mid, m := range s.messages {
		if m.SenderID == id || m.ReceiverID == id {
			delete(s.messages, mid)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) adjustFollowLocked(userID uint, followers, following int) {
	u, ok := s.users[userID]
	if !ok {
		return
	}
	u.Followers += followers
	u.Following += following
	s.users[userID] = u
}

func (s *Store) adjustPostLocked(postID uint, likes, shares int) {
	p, ok := s.posts[postID]
	if !ok {
		return
	}
	p.Likes += likes
	p.Shares += shares
	s.posts[postID] = p
}

// --- posts ------------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, err := s.userLocked(p.UserID)
	if err != nil {
		return models.Post{}, err
	}
	s.lastPostID++
	p.ID = s.lastPostID
	p.Timestamp = s.now().UTC()
	p.Likes, p.Shares = 0, 0
	p.User, p.Comments, p.IsLiked = nil, nil, false
	s.posts[p.ID] = p

	owner.PostsCount++
	s.users[owner.ID] = owner

	return s.joinPostLocked(p, 0), nil
}

func (s *Store) GetPosts(ctx context.Context, viewerID uint) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPostsLocked(func(models.Post) bool { return true }, viewerID), nil
}

func (s *Store) GetUserPosts(ctx context.Context, userID, viewerID uint) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.userLocked(userID); err != nil {
		return nil, err
	}
	return s.listPostsLocked(func(p models.Post) bool { return p.UserID == userID }, viewerID), nil
}

func (s *Store) GetPost(ctx context.Context, id, viewerID uint) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, errors.Wrapf(storage.ErrNotFound, "post %d", id)
	}
	return s.joinPostLocked(p, viewerID), nil
}

func (s *Store) listPostsLocked(keep func(models.Post) bool, viewerID uint) []models.Post {
	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, s.joinPostLocked(p, viewerID))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) joinPostLocked(p models.Post, viewerID uint) models.Post {
	if u, ok := s.users[p.UserID]; ok {
		p.User = &u
	}
	p.Comments = s.commentsLocked(p.ID, viewerID)
	if viewerID != 0 {
		_, p.IsLiked = s.postLikes[pair{p.ID, viewerID}]
	}
	return p
}

func (s *Store) DeletePost(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return errors.Wrapf(storage.ErrNotFound, "post %d", id)
	}
	s.deletePostLocked(id)
	return nil
}

func (s *Store) deletePostLocked(id uint) {
	p := s.posts[id]
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
			s.dropCommentLikesLocked(cid)
		}
	}
	for k := range s.postLikes {
		if k.a == id {
			delete(s.postLikes, k)
		}
	}
	for k := range s.postShares {
		if k.a == id {
			delete(s.postShares, k)
		}
	}
	if owner, ok := s.users[p.UserID]; ok && owner.PostsCount > 0 {
		owner.PostsCount--
		s.users[owner.ID] = owner
	}
	delete(s.posts, id)
}

func (s *Store) dropCommentLikesLocked(commentID uint) {
	for k := range s.commentLikes {
		if k.a == commentID {
			delete(s.commentLikes, k)
		}
	}
}

func (s *Store) TogglePostLike(ctx context.Context, postID, userID uint) (models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return models.LikeResult{}, errors.Wrapf(storage.ErrNotFound, "post %d", postID)
	}
	if _, err := s.userLocked(userID); err != nil {
		return models.LikeResult{}, err
	}

	key := pair{postID, userID}
	if _, liked := s.postLikes[key]; liked {
		delete(s.postLikes, key)
		p.Likes--
		s.posts[postID] = p
		return models.LikeResult{Likes: p.Likes, IsLiked: false}, nil
	}
	s.postLikes[key] = s.now().UTC()
	p.Likes++
	s.posts[postID] = p
	return models.LikeResult{Likes: p.Likes, IsLiked: true}, nil
}

func (s *Store) SharePost(ctx context.Context, postID, userID uint) (models.ShareResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return models.ShareResult{}, errors.Wrapf(storage.ErrNotFound, "post %d", postID)
	}
	if _, err := s.userLocked(userID); err != nil {
		return models.ShareResult{}, err
	}

	key := pair{postID, userID}
	_, shared := s.postShares[key]
	if !shared {
		s.postShares[key] = s.now().UTC()
		p.Shares++
		s.posts[postID] = p
	}
	return models.ShareResult{Shares: p.Shares, IsShared: true, Added: !shared}, nil
}

// --- comments ---------------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[c.PostID]; !ok {
		return models.Comment{}, errors.Wrapf(storage.ErrNotFound, "post %d", c.PostID)
	}
	author, err := s.userLocked(c.UserID)
	if err != nil {
		return models.Comment{}, err
	}
	s.lastCommentID++
	c.ID = s.lastCommentID
	c.Timestamp = s.now().UTC()
	c.Likes = 0
	c.User, c.IsLiked = nil, false
	s.comments[c.ID] = c

	c.User = &author
	return c, nil
}

func (s *Store) GetComments(ctx context.Context, postID, viewerID uint) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.posts[postID]; !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "post %d", postID)
	}
	return s.commentsLocked(postID, viewerID), nil
}

// commentsLocked returns the comments on a post oldest first.
func (s *Store) commentsLocked(postID, viewerID uint) []models.Comment {
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID != postID {
			continue
		}
		if u, ok := s.users[c.UserID]; ok {
			c.User = &u
		}
		if viewerID != 0 {
			_, c.IsLiked = s.commentLikes[pair{c.ID, viewerID}]
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ToggleCommentLike(ctx context.Context, commentID, userID uint) (models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return models.LikeResult{}, errors.Wrapf(storage.ErrNotFound, "comment %d", commentID)
	}
	if _, err := s.userLocked(userID); err != nil {
		return models.LikeResult{}, err
	}

	key := pair{commentID, userID}
	if _, liked := s.commentLikes[key]; liked {
		delete(s.commentLikes, key)
		c.Likes--
		s.comments[commentID] = c
		return models.LikeResult{Likes: c.Likes}, nil
	}
	s.commentLikes[key] = s.now().UTC()
	c.Likes++
	s.comments[commentID] = c
	return models.LikeResult{Likes: c.Likes, IsLiked: true}, nil
}

func (s *Store) DeleteComment(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return errors.Wrapf(storage.ErrNotFound, "comment %d", id)
	}
	delete(s.comments, id)
	s.dropCommentLikesLocked(id)
	return nil
}

// --- stories ----------------------------------------------------------------

func (s *Store) CreateStory(ctx context.Context, st models.Story) (models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, err := s.userLocked(st.UserID)
	if err != nil {
		return models.Story{}, err
	}
	s.lastStoryID++
	st.ID = s.lastStoryID
	st.Timestamp = s.now().UTC()
	st.IsViewed = false
	st.User = nil
	s.stories[st.ID] = st

	st.User = &owner
	return st, nil
}

func (s *Store) GetStories(ctx context.Context) ([]models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Story, 0, len(s.stories))
	for _, st := range s.stories {
		if u, ok := s.users[st.UserID]; ok {
			st.User = &u
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) MarkStoryViewed(ctx context.Context, id uint) (models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stories[id]
	if !ok {
		return models.Story{}, errors.Wrapf(storage.ErrNotFound, "story %d", id)
	}
	st.IsViewed = true
	s.stories[id] = st
	if u, ok := s.users[st.UserID]; ok {
		st.User = &u
	}
	return st, nil
}

func (s *Store) DeleteStory(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		return errors.Wrapf(storage.ErrNotFound, "story %d", id)
	}
	delete(s.stories, id)
	return nil
}

func (s *Store) DeleteStoriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, st := range s.stories {
		if st.Timestamp.Before(cutoff) {
			delete(s.stories, id)
			n++
		}
	}
	return n, nil
}

// --- follows ----------------------------------------------------------------

func (s *Store) FollowUser(ctx context.Context, followerID, followeeID uint) (models.FollowResult, error) {
	if followerID == followeeID {
		return models.FollowResult{}, errors.Wrap(storage.ErrInvalid, "cannot follow yourself")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.userLocked(followerID); err != nil {
		return models.FollowResult{}, err
	}
	if _, err := s.userLocked(followeeID); err != nil {
		return models.FollowResult{}, err
	}

	key := pair{followerID, followeeID}
	following := true
	if _, ok := s.follows[key]; ok {
		delete(s.follows, key)
		s.adjustFollowLocked(followeeID, -1, 0)
		s.adjustFollowLocked(followerID, 0, -1)
		following = false
	} else {
		s.follows[key] = s.now().UTC()
		s.adjustFollowLocked(followeeID, 1, 0)
		s.adjustFollowLocked(followerID, 0, 1)
	}
	return models.FollowResult{Followers: s.users[followeeID].Followers, IsFollowing: following}, nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[pair{followerID, followeeID}]
	return ok, nil
}

// --- messages ---------------------------------------------------------------

func (s *Store) SendMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.SenderID == m.ReceiverID {
		return models.Message{}, errors.Wrap(storage.ErrInvalid, "cannot message yourself")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.userLocked(m.SenderID); err != nil {
		return models.Message{}, err
	}
	if _, err := s.userLocked(m.ReceiverID); err != nil {
		return models.Message{}, err
	}
	s.lastMessageID++
	m.ID = s.lastMessageID
	m.Timestamp = s.now().UTC()
	m.IsRead = false
	s.messages[m.ID] = m
	return m, nil
}

func (s *Store) GetConversation(ctx context.Context, userID, otherID uint) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Message{}
	for _, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == otherID) || (m.SenderID == otherID && m.ReceiverID == userID) {
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *Store) MarkConversationRead(ctx context.Context, readerID, otherID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.ReceiverID == readerID && m.SenderID == otherID && !m.IsRead {
			m.IsRead = true
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (s *Store) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []models.Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			mine = append(mine, m)
		}
	}
	sortMessages(mine)
	return storage.Conversations(userID, mine, s.users), nil
}

func sortMessages(ms []models.Message) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].Timestamp.Equal(ms[j].Timestamp) {
			return ms[i].Timestamp.Before(ms[j].Timestamp)
		}
		return ms[i].ID < ms[j].ID
	})
}

// --- admin ------------------------------------------------------------------

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Stats{
		Users:    int64(len(s.users)),
		Posts:    int64(len(s.posts)),
		Comments: int64(len(s.comments)),
		Stories:  int64(len(s.stories)),
		Messages: int64(len(s.messages)),
	}, nil
}
