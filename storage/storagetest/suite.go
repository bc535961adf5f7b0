// Package storagetest holds the behavioural contract every storage backend
// must satisfy. Backends call Run from their own tests.
package storagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/models"
	"socialhub/storage"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t *testing.T) storage.Storage

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"UsersCreateAndLookup", testUsers},
		{"PostListedWithOwner", testPostListedWithOwner},
		{"PostsNewestFirst", testPostsNewestFirst},
		{"LikeTogglesPerActor", testLikeTogglesPerActor},
		{"LikeCountsDistinctActors", testLikeCountsDistinctActors},
		{"ShareIsIdempotentPerActor", testShare},
		{"FollowToggles", testFollow},
		{"Comments", testComments},
		{"Stories", testStories},
		{"Messages", testMessages},
		{"DeletePost", testDeletePost},
		{"DeleteUserReleasesCounters", testDeleteUser},
		{"Stats", testStats},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func mkUser(t *testing.T, s storage.Storage, name string) models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.User{
		Username:    name,
		Password:    "hash",
		DisplayName: "Display " + name,
	})
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	return u
}

func mkPost(t *testing.T, s storage.Storage, owner uint, content string) models.Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), models.Post{UserID: owner, Content: content})
	require.NoError(t, err)
	return p
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	assert.False(t, alice.JoinDate.IsZero())

	_, err := s.CreateUser(ctx, models.User{Username: "ALICE", Password: "x", DisplayName: "dup"})
	require.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = s.GetUser(ctx, alice.ID+100)
	require.ErrorIs(t, err, storage.ErrNotFound)

	bio := "hello there"
	updated, err := s.UpdateUser(ctx, alice.ID, models.UserPatch{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, "Display alice", updated.DisplayName)

	verified, err := s.SetVerified(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	mkUser(t, s, "bob")
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
}

func testPostListedWithOwner(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")

	music, err := json.Marshal(models.Music{ID: "t1", Name: "Song", Artist: "Band"})
	require.NoError(t, err)
	created, err := s.CreatePost(ctx, models.Post{UserID: alice.ID, Content: "hi", Image: "/uploads/a.png", Music: music})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.Timestamp.IsZero())
	assert.Zero(t, created.Likes)

	posts, err := s.GetPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, created.ID, p.ID)
	assert.Equal(t, "hi", p.Content)
	assert.Equal(t, "/uploads/a.png", p.Image)
	require.NotNil(t, p.User)
	assert.Equal(t, alice.ID, p.User.ID)
	assert.Equal(t, "alice", p.User.Username)
	assert.NotNil(t, p.Comments)
	assert.Empty(t, p.Comments)

	var m models.Music
	require.NoError(t, json.Unmarshal(p.Music, &m))
	assert.Equal(t, "Song", m.Name)

	owner, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, owner.PostsCount)

	_, err = s.CreatePost(ctx, models.Post{UserID: 9999, Content: "ghost"})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testPostsNewestFirst(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	first := mkPost(t, s, alice.ID, "first")
	second := mkPost(t, s, bob.ID, "second")
	third := mkPost(t, s, alice.ID, "third")

	posts, err := s.GetPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []uint{third.ID, second.ID, first.ID}, []uint{posts[0].ID, posts[1].ID, posts[2].ID})

	mine, err := s.GetUserPosts(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, third.ID, mine[0].ID)
}

func testLikeTogglesPerActor(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	post := mkPost(t, s, alice.ID, "like me")

	res, err := s.TogglePostLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 1, IsLiked: true}, res)

	got, err := s.GetPost(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLiked)
	got, err = s.GetPost(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLiked)

	res, err = s.TogglePostLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 0, IsLiked: false}, res)

	_, err = s.TogglePostLike(ctx, post.ID+50, bob.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testLikeCountsDistinctActors(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	owner := mkUser(t, s, "owner")
	post := mkPost(t, s, owner.ID, "popular")

	const n = 5
	for i := 1; i <= n; i++ {
		fan := mkUser(t, s, fmt.Sprintf("fan%d", i))
		res, err := s.TogglePostLike(ctx, post.ID, fan.ID)
		require.NoError(t, err)
		assert.Equal(t, i, res.Likes)
		assert.True(t, res.IsLiked)
	}

	posts, err := s.GetPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, n, posts[0].Likes)
}

func testShare(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	carol := mkUser(t, s, "carol")
	post := mkPost(t, s, alice.ID, "share me")

	for i := 0; i < 3; i++ {
		res, err := s.SharePost(ctx, post.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ShareResult{Shares: 1, IsShared: true, Added: i == 0}, res)
	}
	res, err := s.SharePost(ctx, post.ID, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Shares)
}

func testFollow(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")

	res, err := s.FollowUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowResult{Followers: 1, IsFollowing: true}, res)

	a, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Following)
	following, err := s.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	res, err = s.FollowUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowResult{Followers: 0, IsFollowing: false}, res)
	a, err = s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, a.Following)

	_, err = s.FollowUser(ctx, alice.ID, alice.ID)
	require.ErrorIs(t, err, storage.ErrInvalid)
	_, err = s.FollowUser(ctx, alice.ID, bob.ID+100)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testComments(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	post := mkPost(t, s, alice.ID, "discuss")

	c1, err := s.CreateComment(ctx, models.Comment{PostID: post.ID, UserID: bob.ID, Content: "first!"})
	require.NoError(t, err)
	require.NotNil(t, c1.User)
	assert.Equal(t, "bob", c1.User.Username)
	c2, err := s.CreateComment(ctx, models.Comment{PostID: post.ID, UserID: alice.ID, Content: "thanks"})
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, models.Comment{PostID: post.ID + 10, UserID: bob.ID, Content: "lost"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	like, err := s.ToggleCommentLike(ctx, c1.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 1, IsLiked: true}, like)

	comments, err := s.GetComments(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, c1.ID, comments[0].ID)
	assert.True(t, comments[0].IsLiked)
	assert.Equal(t, c2.ID, comments[1].ID)
	assert.False(t, comments[1].IsLiked)

	posts, err := s.GetPosts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Len(t, posts[0].Comments, 2)
	require.NotNil(t, posts[0].Comments[0].User)
	assert.Equal(t, "bob", posts[0].Comments[0].User.Username)

	require.NoError(t, s.DeleteComment(ctx, c1.ID))
	comments, err = s.GetComments(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.ErrorIs(t, s.DeleteComment(ctx, c1.ID), storage.ErrNotFound)
}

func testStories(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	older, err := s.CreateStory(ctx, models.Story{UserID: alice.ID, Image: "/uploads/1.png"})
	require.NoError(t, err)
	newer, err := s.CreateStory(ctx, models.Story{UserID: alice.ID, Image: "/uploads/2.png"})
	require.NoError(t, err)

	stories, err := s.GetStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, newer.ID, stories[0].ID)
	require.NotNil(t, stories[0].User)
	assert.Equal(t, "alice", stories[0].User.Username)
	assert.False(t, stories[0].IsViewed)

	viewed, err := s.MarkStoryViewed(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, viewed.IsViewed)

	n, err := s.DeleteStoriesBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DeleteStory(ctx, older.ID))
	require.ErrorIs(t, s.DeleteStory(ctx, older.ID), storage.ErrNotFound)

	n, err = s.DeleteStoriesBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	stories, err = s.GetStories(ctx)
	require.NoError(t, err)
	assert.Empty(t, stories)
}

func testMessages(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	carol := mkUser(t, s, "carol")

	send := func(from, to uint, text string) models.Message {
		m, err := s.SendMessage(ctx, models.Message{SenderID: from, ReceiverID: to, Content: text})
		require.NoError(t, err)
		return m
	}
	send(alice.ID, bob.ID, "hey bob")
	send(bob.ID, alice.ID, "hey alice")
	send(bob.ID, alice.ID, "you there?")
	last := send(carol.ID, alice.ID, "hi from carol")

	_, err := s.SendMessage(ctx, models.Message{SenderID: alice.ID, ReceiverID: alice.ID, Content: "me"})
	require.ErrorIs(t, err, storage.ErrInvalid)

	conv, err := s.GetConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "hey bob", conv[0].Content)
	assert.Equal(t, "you there?", conv[2].Content)

	threads, err := s.ListConversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, carol.ID, threads[0].Partner.ID)
	assert.Equal(t, last.ID, threads[0].LastMessage.ID)
	assert.Equal(t, bob.ID, threads[1].Partner.ID)
	assert.Equal(t, 2, threads[1].Unread)

	read, err := s.MarkConversationRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, read)
	threads, err = s.ListConversations(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, threads[1].Unread)
}

func testDeletePost(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	post := mkPost(t, s, alice.ID, "temporary")
	_, err := s.CreateComment(ctx, models.Comment{PostID: post.ID, UserID: bob.ID, Content: "nice"})
	require.NoError(t, err)
	_, err = s.TogglePostLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeletePost(ctx, post.ID))
	_, err = s.GetPost(ctx, post.ID, 0)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, s.DeletePost(ctx, post.ID), storage.ErrNotFound)

	owner, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, owner.PostsCount)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Comments)
}

func testDeleteUser(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	alicePost := mkPost(t, s, alice.ID, "alice writes")
	bobPost := mkPost(t, s, bob.ID, "bob writes")

	_, err := s.TogglePostLike(ctx, bobPost.ID, alice.ID)
	require.NoError(t, err)
	_, err = s.SharePost(ctx, bobPost.ID, alice.ID)
	require.NoError(t, err)
	_, err = s.FollowUser(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.FollowUser(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, models.Comment{PostID: bobPost.ID, UserID: alice.ID, Content: "hi bob"})
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, models.Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "bye"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, alice.ID))
	_, err = s.GetUser(ctx, alice.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetPost(ctx, alicePost.ID, 0)
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetPost(ctx, bobPost.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, got.Likes)
	assert.Zero(t, got.Shares)
	assert.Empty(t, got.Comments)

	b, err := s.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, b.Followers)
	assert.Zero(t, b.Following)

	conv, err := s.GetConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, conv)
}

func testStats(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	alice := mkUser(t, s, "alice")
	bob := mkUser(t, s, "bob")
	post := mkPost(t, s, alice.ID, "counted")
	_, err := s.CreateComment(ctx, models.Comment{PostID: post.ID, UserID: bob.ID, Content: "c"})
	require.NoError(t, err)
	_, err = s.CreateStory(ctx, models.Story{UserID: bob.ID, Image: "/uploads/s.gif"})
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, models.Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: "m"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Users: 2, Posts: 1, Comments: 1, Stories: 1, Messages: 1}, stats)
	require.NoError(t, s.Ping(ctx))
}
