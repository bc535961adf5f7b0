package models

// Music is the track attached to a post, as returned by the Spotify search proxy.
type Music struct {
	ID          string `json:"id" binding:"required,max=128"`
	Name        string `json:"name" binding:"required,max=256"`
	Artist      string `json:"artist" binding:"max=256"`
	Album       string `json:"album,omitempty" binding:"max=256"`
	Image       string `json:"image,omitempty" binding:"max=2048"`
	PreviewURL  string `json:"previewUrl,omitempty" binding:"max=2048"`
	ExternalURL string `json:"externalUrl,omitempty" binding:"max=2048"`
}

// UserPatch carries the profile fields a user may edit. Nil means unchanged.
type UserPatch struct {
	DisplayName *string `json:"displayName" binding:"omitempty,min=1,max=128"`
	Avatar      *string `json:"avatar" binding:"omitempty,max=2048"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
}

type LikeResult struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

type ShareResult struct {
	Shares   int  `json:"shares"`
	IsShared bool `json:"isShared"`
	// Added is false when the caller had already shared the post.
	Added bool `json:"-"`
}

type FollowResult struct {
	Followers   int  `json:"followers"`
	IsFollowing bool `json:"isFollowing"`
}

// Conversation summarizes a chat thread from one user's point of view.
type Conversation struct {
	Partner     User    `json:"partner"`
	LastMessage Message `json:"lastMessage"`
	Unread      int     `json:"unread"`
}

type Stats struct {
	Users    int64 `json:"users"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Stories  int64 `json:"stories"`
	Messages int64 `json:"messages"`
}
