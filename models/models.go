package models

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password    string    `gorm:"not null" json:"-"` // bcrypt hash
	DisplayName string    `gorm:"size:128;not null" json:"displayName"`
	Avatar      string    `json:"avatar"`
	Bio         string    `gorm:"type:text" json:"bio"`
	Followers   int       `gorm:"not null;default:0" json:"followers"`
	Following   int       `gorm:"not null;default:0" json:"following"`
	PostsCount  int       `gorm:"not null;default:0" json:"postsCount"`
	IsVerified  bool      `gorm:"not null;default:false" json:"isVerified"`
	IsAdmin     bool      `gorm:"not null;default:false" json:"isAdmin"`
	JoinDate    time.Time `gorm:"not null" json:"joinDate"`

	// Filled from the presence tracker, never stored.
	IsOnline bool `gorm:"-" json:"isOnline"`
}

type Post struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"userId"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Image     string         `json:"image,omitempty"`
	Music     datatypes.JSON `json:"music,omitempty"` // encoded Music
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Likes     int            `gorm:"not null;default:0" json:"likes"`
	Shares    int            `gorm:"not null;default:0" json:"shares"`

	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments"`
	IsLiked  bool      `gorm:"-" json:"isLiked"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`

	User    *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IsLiked bool  `gorm:"-" json:"isLiked"`
}

// Story is an ephemeral image post. Stories older than the configured TTL
// are removed by the sweeper.
type Story struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Image     string    `gorm:"not null" json:"image"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	IsViewed  bool      `gorm:"not null;default:false" json:"isViewed"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Relation rows. The composite primary keys make every toggle idempotent per actor.

type PostLike struct {
	PostID    uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

type PostShare struct {
	PostID    uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

type CommentLike struct {
	CommentID uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

type Follow struct {
	FollowerID uint `gorm:"primaryKey;autoIncrement:false"`
	FolloweeID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time
}

type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index:idx_messages_pair,priority:1" json:"senderId"`
	ReceiverID uint      `gorm:"not null;index:idx_messages_pair,priority:2" json:"receiverId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	IsRead     bool      `gorm:"not null;default:false" json:"isRead"`
}

// All lists every table model in migration order.
func All() []any {
	return []any{
		&User{}, &Post{}, &Comment{}, &Story{},
		&PostLike{}, &PostShare{}, &CommentLike{}, &Follow{}, &Message{},
	}
}
