package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialhub/models"
	"socialhub/storage"
)

type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// New wraps an already opened gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "sql handle")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping")
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "sql handle")
	}
	return sqlDB.Close()
}

// translate maps gorm sentinel errors onto the storage ones.
func translate(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrapf(storage.ErrNotFound, format, args...)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrapf(storage.ErrConflict, format, args...)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrInvalid):
		return err
	}
	return errors.Wrapf(err, format, args...)
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
}

func oldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
}

func exists(tx *gorm.DB, model any, id uint, what string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return errors.Wrapf(err, "lookup %s %d", what, id)
	}
	if n == 0 {
		return errors.Wrapf(storage.ErrNotFound, "%s %d", what, id)
	}
	return nil
}

// --- users ------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	db := s.db.WithContext(ctx)
	var taken int64
	if err := db.Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(u.Username)).Count(&taken).Error; err != nil {
		return models.User{}, errors.Wrap(err, "check username")
	}
	if taken > 0 {
		return models.User{}, errors.Wrapf(storage.ErrConflict, "username %q taken", u.Username)
	}

	u.ID = 0
	if u.JoinDate.IsZero() {
		u.JoinDate = time.Now().UTC()
	}
	if err := db.Create(&u).Error; err != nil {
		return models.User{}, translate(err, "create user %q", u.Username)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, translate(err, "user %d", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&u).Error
	return u, translate(err, "user %q", username)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uint, patch models.UserPatch) (models.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return models.User{}, err
	}
	updates := map[string]any{}
	if patch.DisplayName != nil {
		updates["display_name"] = *patch.DisplayName
	}
	if patch.Avatar != nil {
		updates["avatar"] = *patch.Avatar
	}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return models.User{}, translate(err, "update user %d", id)
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetVerified(ctx context.Context, id uint, verified bool) (models.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return models.User{}, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_verified", verified).Error; err != nil {
		return models.User{}, translate(err, "verify user %d", id)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.User{}, id, "user"); err != nil {
			return err
		}

		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("user_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
			return errors.Wrap(err, "user posts")
		}
		for _, pid := range postIDs {
			if err := deletePost(tx, pid); err != nil {
				return err
			}
		}

		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("user_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return errors.Wrap(err, "user comments")
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
				return errors.Wrap(err, "delete comment likes")
			}
			if err := tx.Where("id IN ?", commentIDs).Delete(&models.Comment{}).Error; err != nil {
				return errors.Wrap(err, "delete comments")
			}
		}

		if err := releaseRelation(tx, &models.PostLike{}, "post_id", id, &models.Post{}, "likes"); err != nil {
			return err
		}
		if err := releaseRelation(tx, &models.PostShare{}, "post_id", id, &models.Post{}, "shares"); err != nil {
			return err
		}
		if err := releaseRelation(tx, &models.CommentLike{}, "comment_id", id, &models.Comment{}, "likes"); err != nil {
			return err
		}

		var followees, followers []uint
		if err := tx.Model(&models.Follow{}).Where("follower_id = ?", id).Pluck("followee_id", &followees).Error; err != nil {
			return errors.Wrap(err, "followees")
		}
		if err := tx.Model(&models.Follow{}).Where("followee_id = ?", id).Pluck("follower_id", &followers).Error; err != nil {
			return errors.Wrap(err, "followers")
		}
		if len(followees) > 0 {
			if err := tx.Model(&models.User{}).Where("id IN ?", followees).UpdateColumn("followers", gorm.Expr("followers - 1")).Error; err != nil {
				return errors.Wrap(err, "release followees")
			}
		}
		if len(followers) > 0 {
			if err := tx.Model(&models.User{}).Where("id IN ?", followers).UpdateColumn("following", gorm.Expr("following - 1")).Error; err != nil {
				return errors.Wrap(err, "release followers")
			}
		}
		if err := tx.Where("follower_id = ? OR followee_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
			return errors.Wrap(err, "delete follows")
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.Story{}).Error; err != nil {
			return errors.Wrap(err, "delete stories")
		}
		if err := tx.Where("sender_id = ? OR receiver_id = ?", id, id).Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "delete messages")
		}
		return errors.Wrap(tx.Delete(&models.User{}, id).Error, "delete user")
	})
}

// releaseRelation drops every relation row owned by userID and decrements
// the counter column on the targets it pointed at.
func releaseRelation(tx *gorm.DB, relation any, targetColumn string, userID uint, target any, counter string) error {
	var targets []uint
	if err := tx.Model(relation).Where("user_id = ?", userID).Pluck(targetColumn, &targets).Error; err != nil {
		return errors.Wrapf(err, "pluck %s", targetColumn)
	}
	if len(targets) == 0 {
		return nil
	}
	if err := tx.Model(target).Where("id IN ?", targets).UpdateColumn(counter, gorm.Expr(counter+" - 1")).Error; err != nil {
		return errors.Wrapf(err, "decrement %s", counter)
	}
	return errors.Wrap(tx.Where("user_id = ?", userID).Delete(relation).Error, "delete relation")
}

// --- posts ------------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p models.Post) (models.Post, error) {
	p.ID = 0
	p.Timestamp = time.Now().UTC()
	p.Likes, p.Shares = 0, 0
	p.User, p.Comments, p.IsLiked = nil, nil, false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.User{}, p.UserID, "user"); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return errors.Wrap(err, "insert post")
		}
		return errors.Wrap(tx.Model(&models.User{}).Where("id = ?", p.UserID).
			UpdateColumn("posts_count", gorm.Expr("posts_count + 1")).Error, "bump posts count")
	})
	if err != nil {
		return models.Post{}, translate(err, "create post")
	}
	return s.GetPost(ctx, p.ID, 0)
}

func (s *Store) postsQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("User").
		Preload("Comments", oldestFirst).
		Preload("Comments.User")
}

func (s *Store) GetPosts(ctx context.Context, viewerID uint) ([]models.Post, error) {
	var posts []models.Post
	if err := newestFirst(s.postsQuery(ctx)).Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "list posts")
	}
	return posts, s.markLiked(ctx, posts, viewerID)
}

func (s *Store) GetUserPosts(ctx context.Context, userID, viewerID uint) ([]models.Post, error) {
	if err := exists(s.db.WithContext(ctx), &models.User{}, userID, "user"); err != nil {
		return nil, err
	}
	var posts []models.Post
	if err := newestFirst(s.postsQuery(ctx)).Where("user_id = ?", userID).Find(&posts).Error; err != nil {
		return nil, errors.Wrapf(err, "list posts of user %d", userID)
	}
	return posts, s.markLiked(ctx, posts, viewerID)
}

func (s *Store) GetPost(ctx context.Context, id, viewerID uint) (models.Post, error) {
	var p models.Post
	if err := s.postsQuery(ctx).First(&p, id).Error; err != nil {
		return models.Post{}, translate(err, "post %d", id)
	}
	posts := []models.Post{p}
	if err := s.markLiked(ctx, posts, viewerID); err != nil {
		return models.Post{}, err
	}
	return posts[0], nil
}

// markLiked fills IsLiked on posts and their comments for viewerID and
// replaces nil comment slices with empty ones.
func (s *Store) markLiked(ctx context.Context, posts []models.Post, viewerID uint) error {
	for i := range posts {
		if posts[i].Comments == nil {
			posts[i].Comments = []models.Comment{}
		}
	}
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}

	var likedPosts, likedComments []uint
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.PostLike{}).Where("user_id = ?", viewerID).Pluck("post_id", &likedPosts).Error; err != nil {
		return errors.Wrap(err, "viewer post likes")
	}
	if err := db.Model(&models.CommentLike{}).Where("user_id = ?", viewerID).Pluck("comment_id", &likedComments).Error; err != nil {
		return errors.Wrap(err, "viewer comment likes")
	}
	postSet := toSet(likedPosts)
	commentSet := toSet(likedComments)
	for i := range posts {
		posts[i].IsLiked = postSet[posts[i].ID]
		for j := range posts[i].Comments {
			posts[i].Comments[j].IsLiked = commentSet[posts[i].Comments[j].ID]
		}
	}
	return nil
}

func toSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *Store) DeletePost(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePost(tx, id)
	})
}

func deletePost(tx *gorm.DB, id uint) error {
	var p models.Post
	if err := tx.Select("id", "user_id").First(&p, id).Error; err != nil {
		return translate(err, "post %d", id)
	}

	var commentIDs []uint
	if err := tx.Model(&models.Comment{}).Where("post_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
		return errors.Wrap(err, "post comments")
	}
	if len(commentIDs) > 0 {
		if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return errors.Wrap(err, "delete comment likes")
		}
	}
	if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
		return errors.Wrap(err, "delete comments")
	}
	if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
		return errors.Wrap(err, "delete likes")
	}
	if err := tx.Where("post_id = ?", id).Delete(&models.PostShare{}).Error; err != nil {
		return errors.Wrap(err, "delete shares")
	}
	if err := tx.Delete(&models.Post{}, id).Error; err != nil {
		return errors.Wrap(err, "delete post")
	}
	return errors.Wrap(tx.Model(&models.User{}).Where("id = ? AND posts_count > 0", p.UserID).
		UpdateColumn("posts_count", gorm.Expr("posts_count - 1")).Error, "drop posts count")
}

func (s *Store) TogglePostLike(ctx context.Context, postID, userID uint) (models.LikeResult, error) {
	var out models.LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Post{}, postID, "post"); err != nil {
			return err
		}
		if err := exists(tx, &models.User{}, userID, "user"); err != nil {
			return err
		}

		removed := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if removed.Error != nil {
			return errors.Wrap(removed.Error, "unlike")
		}
		delta := "likes - 1"
		if removed.RowsAffected == 0 {
			if err := tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error; err != nil {
				return errors.Wrap(err, "like")
			}
			delta = "likes + 1"
			out.IsLiked = true
		}
		return errors.Wrap(tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes", gorm.Expr(delta)).Error, "update likes")
	})
	if err != nil {
		return models.LikeResult{}, translate(err, "toggle like on post %d", postID)
	}
	out.Likes, err = s.counter(ctx, &models.Post{}, postID, "likes")
	return out, err
}

func (s *Store) SharePost(ctx context.Context, postID, userID uint) (models.ShareResult, error) {
	added := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Post{}, postID, "post"); err != nil {
			return err
		}
		if err := exists(tx, &models.User{}, userID, "user"); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.PostShare{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&n).Error; err != nil {
			return errors.Wrap(err, "lookup share")
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&models.PostShare{PostID: postID, UserID: userID}).Error; err != nil {
			return errors.Wrap(err, "share")
		}
		added = true
		return errors.Wrap(tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("shares", gorm.Expr("shares + 1")).Error, "update shares")
	})
	if err != nil {
		return models.ShareResult{}, translate(err, "share post %d", postID)
	}
	shares, err := s.counter(ctx, &models.Post{}, postID, "shares")
	return models.ShareResult{Shares: shares, IsShared: true, Added: added}, err
}

func (s *Store) counter(ctx context.Context, model any, id uint, column string) (int, error) {
	var values []int
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Pluck(column, &values).Error; err != nil {
		return 0, errors.Wrapf(err, "read %s", column)
	}
	if len(values) == 0 {
		return 0, errors.Wrapf(storage.ErrNotFound, "row %d", id)
	}
	return values[0], nil
}

// --- comments ---------------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	c.ID = 0
	c.Timestamp = time.Now().UTC()
	c.Likes = 0
	c.User, c.IsLiked = nil, false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Post{}, c.PostID, "post"); err != nil {
			return err
		}
		if err := exists(tx, &models.User{}, c.UserID, "user"); err != nil {
			return err
		}
		return errors.Wrap(tx.Omit(clause.Associations).Create(&c).Error, "insert comment")
	})
	if err != nil {
		return models.Comment{}, translate(err, "create comment")
	}

	var out models.Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&out, c.ID).Error; err != nil {
		return models.Comment{}, translate(err, "comment %d", c.ID)
	}
	return out, nil
}

func (s *Store) GetComments(ctx context.Context, postID, viewerID uint) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)
	if err := exists(db, &models.Post{}, postID, "post"); err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	if err := oldestFirst(db.Preload("User")).Where("post_id = ?", postID).Find(&comments).Error; err != nil {
		return nil, errors.Wrapf(err, "comments of post %d", postID)
	}
	if viewerID == 0 {
		return comments, nil
	}
	var liked []uint
	if err := db.Model(&models.CommentLike{}).Where("user_id = ?", viewerID).Pluck("comment_id", &liked).Error; err != nil {
		return nil, errors.Wrap(err, "viewer comment likes")
	}
	set := toSet(liked)
	for i := range comments {
		comments[i].IsLiked = set[comments[i].ID]
	}
	return comments, nil
}

func (s *Store) ToggleCommentLike(ctx context.Context, commentID, userID uint) (models.LikeResult, error) {
	var out models.LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Comment{}, commentID, "comment"); err != nil {
			return err
		}
		if err := exists(tx, &models.User{}, userID, "user"); err != nil {
			return err
		}
		removed := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if removed.Error != nil {
			return errors.Wrap(removed.Error, "unlike comment")
		}
		delta := "likes - 1"
		if removed.RowsAffected == 0 {
			if err := tx.Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error; err != nil {
				return errors.Wrap(err, "like comment")
			}
			delta = "likes + 1"
			out.IsLiked = true
		}
		return errors.Wrap(tx.Model(&models.Comment{}).Where("id = ?", commentID).
			UpdateColumn("likes", gorm.Expr(delta)).Error, "update comment likes")
	})
	if err != nil {
		return models.LikeResult{}, translate(err, "toggle like on comment %d", commentID)
	}
	out.Likes, err = s.counter(ctx, &models.Comment{}, commentID, "likes")
	return out, err
}

func (s *Store) DeleteComment(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Comment{}, id, "comment"); err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", id).Delete(&models.CommentLike{}).Error; err != nil {
			return errors.Wrap(err, "delete comment likes")
		}
		return errors.Wrap(tx.Delete(&models.Comment{}, id).Error, "delete comment")
	})
}

// --- stories ----------------------------------------------------------------

func (s *Store) CreateStory(ctx context.Context, st models.Story) (models.Story, error) {
	st.ID = 0
	st.Timestamp = time.Now().UTC()
	st.IsViewed = false
	st.User = nil

	db := s.db.WithContext(ctx)
	if err := exists(db, &models.User{}, st.UserID, "user"); err != nil {
		return models.Story{}, err
	}
	if err := db.Omit(clause.Associations).Create(&st).Error; err != nil {
		return models.Story{}, translate(err, "create story")
	}
	return s.story(ctx, st.ID)
}

func (s *Store) story(ctx context.Context, id uint) (models.Story, error) {
	var st models.Story
	err := s.db.WithContext(ctx).Preload("User").First(&st, id).Error
	return st, translate(err, "story %d", id)
}

func (s *Store) GetStories(ctx context.Context) ([]models.Story, error) {
	stories := []models.Story{}
	if err := newestFirst(s.db.WithContext(ctx).Preload("User")).Find(&stories).Error; err != nil {
		return nil, errors.Wrap(err, "list stories")
	}
	return stories, nil
}

func (s *Store) MarkStoryViewed(ctx context.Context, id uint) (models.Story, error) {
	db := s.db.WithContext(ctx)
	if err := exists(db, &models.Story{}, id, "story"); err != nil {
		return models.Story{}, err
	}
	if err := db.Model(&models.Story{}).Where("id = ?", id).Update("is_viewed", true).Error; err != nil {
		return models.Story{}, translate(err, "view story %d", id)
	}
	return s.story(ctx, id)
}

func (s *Store) DeleteStory(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Story{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete story %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(storage.ErrNotFound, "story %d", id)
	}
	return nil
}

func (s *Store) DeleteStoriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where(clause.Lt{Column: clause.Column{Name: "timestamp"}, Value: cutoff.UTC()}).
		Delete(&models.Story{})
	return res.RowsAffected, errors.Wrap(res.Error, "sweep stories")
}

// --- follows ----------------------------------------------------------------

func (s *Store) FollowUser(ctx context.Context, followerID, followeeID uint) (models.FollowResult, error) {
	if followerID == followeeID {
		return models.FollowResult{}, errors.Wrap(storage.ErrInvalid, "cannot follow yourself")
	}
	var out models.FollowResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.User{}, followerID, "user"); err != nil {
			return err
		}
		if err := exists(tx, &models.User{}, followeeID, "user"); err != nil {
			return err
		}
		removed := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&models.Follow{})
		if removed.Error != nil {
			return errors.Wrap(removed.Error, "unfollow")
		}
		step := "- 1"
		if removed.RowsAffected == 0 {
			if err := tx.Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error; err != nil {
				return errors.Wrap(err, "follow")
			}
			step = "+ 1"
			out.IsFollowing = true
		}
		if err := tx.Model(&models.User{}).Where("id = ?", followeeID).
			UpdateColumn("followers", gorm.Expr("followers "+step)).Error; err != nil {
			return errors.Wrap(err, "update followers")
		}
		return errors.Wrap(tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following", gorm.Expr("following "+step)).Error, "update following")
	})
	if err != nil {
		return models.FollowResult{}, translate(err, "follow user %d", followeeID)
	}
	out.Followers, err = s.counter(ctx, &models.User{}, followeeID, "followers")
	return out, err
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Count(&n).Error
	return n > 0, errors.Wrap(err, "lookup follow")
}

// --- messages ---------------------------------------------------------------

func (s *Store) SendMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.SenderID == m.ReceiverID {
		return models.Message{}, errors.Wrap(storage.ErrInvalid, "cannot message yourself")
	}
	db := s.db.WithContext(ctx)
	if err := exists(db, &models.User{}, m.SenderID, "user"); err != nil {
		return models.Message{}, err
	}
	if err := exists(db, &models.User{}, m.ReceiverID, "user"); err != nil {
		return models.Message{}, err
	}
	m.ID = 0
	m.Timestamp = time.Now().UTC()
	m.IsRead = false
	if err := db.Create(&m).Error; err != nil {
		return models.Message{}, translate(err, "send message")
	}
	return m, nil
}

func (s *Store) GetConversation(ctx context.Context, userID, otherID uint) ([]models.Message, error) {
	msgs := []models.Message{}
	err := oldestFirst(s.db.WithContext(ctx)).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, otherID, otherID, userID).
		Find(&msgs).Error
	return msgs, errors.Wrap(err, "conversation")
}

func (s *Store) MarkConversationRead(ctx context.Context, readerID, otherID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", readerID, otherID, false).
		Update("is_read", true)
	return res.RowsAffected, errors.Wrap(res.Error, "mark read")
}

func (s *Store) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	db := s.db.WithContext(ctx)
	var msgs []models.Message
	if err := oldestFirst(db).Where("sender_id = ? OR receiver_id = ?", userID, userID).Find(&msgs).Error; err != nil {
		return nil, errors.Wrap(err, "user messages")
	}

	partnerIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderID == userID {
			partnerIDs = append(partnerIDs, m.ReceiverID)
		} else {
			partnerIDs = append(partnerIDs, m.SenderID)
		}
	}
	users := make(map[uint]models.User)
	if len(partnerIDs) > 0 {
		var partners []models.User
		if err := db.Where("id IN ?", partnerIDs).Find(&partners).Error; err != nil {
			return nil, errors.Wrap(err, "conversation partners")
		}
		for _, u := range partners {
			users[u.ID] = u
		}
	}
	return storage.Conversations(userID, msgs, users), nil
}

// --- admin ------------------------------------------------------------------

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	db := s.db.WithContext(ctx)
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.User{}, &st.Users},
		{&models.Post{}, &st.Posts},
		{&models.Comment{}, &st.Comments},
		{&models.Story{}, &st.Stories},
		{&models.Message{}, &st.Messages},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return models.Stats{}, errors.Wrap(err, "stats")
		}
	}
	return st, nil
}
