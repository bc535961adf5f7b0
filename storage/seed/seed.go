// Package seed fills an empty backend with a handful of demo accounts and
// posts so a fresh install has something to show.
package seed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"socialhub/models"
	"socialhub/storage"
)

// DemoPassword is the password of the seeded non-admin accounts. The admin
// account never uses it.
const DemoPassword = "password123"

// AdminUsername names the seeded moderator account.
const AdminUsername = "admin"

type demoUser struct {
	username, displayName, avatar, bio string
	verified, admin                    bool
}

var demoUsers = []demoUser{
	{AdminUsername, "Moderator", "https://i.pravatar.cc/150?img=1", "Keeping the feed friendly.", true, true},
	{"alex_dev", "Alex Rivera", "https://i.pravatar.cc/150?img=12", "Full-stack developer. Coffee first.", true, false},
	{"mia.snaps", "Mia Chen", "https://i.pravatar.cc/150?img=32", "Photographer and weekend hiker.", false, false},
	{"sam_beats", "Sam Okafor", "https://i.pravatar.cc/150?img=53", "Producer. Always looking for new sounds.", false, false},
}

// Run inserts the demo data unless the backend already has users. The admin
// gets adminPassword, or a random password that is logged once when it is
// empty.
func Run(ctx context.Context, store storage.Storage, log *slog.Logger, adminPassword string) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return errors.Wrap(err, "seed: stats")
	}
	if stats.Users > 0 {
		log.Info("seed skipped, storage not empty", "users", stats.Users)
		return nil
	}

	generated := adminPassword == ""
	if generated {
		adminPassword = uuid.NewString()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "seed: hash password")
	}
	adminHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "seed: hash admin password")
	}

	users := make([]models.User, 0, len(demoUsers))
	for _, d := range demoUsers {
		password := hash
		if d.admin {
			password = adminHash
		}
		u, err := store.CreateUser(ctx, models.User{
			Username:    d.username,
			Password:    string(password),
			DisplayName: d.displayName,
			Avatar:      d.avatar,
			Bio:         d.bio,
			IsVerified:  d.verified,
			IsAdmin:     d.admin,
		})
		if err != nil {
			return errors.Wrapf(err, "seed: user %s", d.username)
		}
		users = append(users, u)
	}
	alex, mia, sam := users[1], users[2], users[3]

	music, err := json.Marshal(models.Music{
		ID:     "4uLU6hMCjMI75M1A2tKUQC",
		Name:   "Never Gonna Give You Up",
		Artist: "Rick Astley",
		Album:  "Whenever You Need Somebody",
	})
	if err != nil {
		return errors.Wrap(err, "seed: encode music")
	}
	posts := []models.Post{
		{UserID: alex.ID, Content: "Shipped the new feed today. Feedback welcome!"},
		{UserID: mia.ID, Content: "Golden hour at the lake.", Image: "https://picsum.photos/seed/lake/800/600"},
		{UserID: sam.ID, Content: "On repeat all week.", Music: music},
	}
	for _, p := range posts {
		created, err := store.CreatePost(ctx, p)
		if err != nil {
			return errors.Wrap(err, "seed: post")
		}
		if _, err := store.CreateComment(ctx, models.Comment{PostID: created.ID, UserID: alex.ID, Content: "Love this!"}); err != nil {
			return errors.Wrap(err, "seed: comment")
		}
	}

	for _, st := range []models.Story{
		{UserID: mia.ID, Image: "https://picsum.photos/seed/story1/400/700"},
		{UserID: sam.ID, Image: "https://picsum.photos/seed/story2/400/700"},
	} {
		if _, err := store.CreateStory(ctx, st); err != nil {
			return errors.Wrap(err, "seed: story")
		}
	}

	for _, f := range [][2]uint{{alex.ID, mia.ID}, {mia.ID, alex.ID}, {sam.ID, alex.ID}} {
		if _, err := store.FollowUser(ctx, f[0], f[1]); err != nil {
			return errors.Wrap(err, "seed: follow")
		}
	}

	if generated {
		log.Warn("generated password for the seeded admin account, change it or set SEED_ADMIN_PASSWORD",
			"username", AdminUsername, "admin_password", adminPassword)
	}
	log.Info("seeded demo data", "users", len(users), "posts", len(posts))
	return nil
}
