// Package seed populates a database with demo users, posts and engagement for
// development. Engagement goes through the engagement service, so every seeded
// like and comment also leaves its notification behind.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"ripple/internal/models"
	"ripple/internal/notifications"
	"ripple/internal/observability"
	"ripple/internal/repository"
	"ripple/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumPosts       int
	MaxLikes       int
	MaxComments    int
	MaxDays        int
	Clean          bool
	RandomSeed     int64
	PasswordCost   int
	SelfEngagement bool
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Posts         int
	Likes         int
	Comments      int
	Notifications int64
}

// Seeder writes demo data through the repositories.
type Seeder struct {
	db         *gorm.DB
	store      *repository.Store
	engagement *service.EngagementService
	faker      *gofakeit.Faker
	opts       Options
}

// storeOnly persists notifications without live delivery; nobody is connected while seeding.
type storeOnly struct {
	*notifications.Dispatcher
}

func (storeOnly) Push(models.Event, *models.Notification) bool { return false }

// NewSeeder creates a seeder. Zero options fall back to small demo sizes.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 20
	}
	if opts.NumPosts < 0 {
		opts.NumPosts = 0
	}
	if opts.MaxLikes <= 0 {
		opts.MaxLikes = 5
	}
	if opts.MaxComments <= 0 {
		opts.MaxComments = 3
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	if opts.RandomSeed == 0 {
		opts.RandomSeed = time.Now().UnixNano()
	}

	store := repository.NewStore(db)
	dispatcher := notifications.NewDispatcher(store, nil, nil, notifications.DispatcherConfig{})
	return &Seeder{
		db:         db,
		store:      store,
		engagement: service.NewEngagementService(store, storeOnly{dispatcher}),
		faker:      gofakeit.New(opts.RandomSeed),
		opts:       opts,
	}
}

// Run seeds users, posts, likes and comments.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	observability.Logger.Info("seeding database",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("posts", s.opts.NumPosts),
		slog.Bool("clean", s.opts.Clean),
	)

	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	summary := &Summary{}
	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)

	posts, err := s.createPosts(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)

	for _, post := range posts {
		likes, comments, err := s.engage(ctx, post, users)
		if err != nil {
			return nil, err
		}
		summary.Likes += likes
		summary.Comments += comments
	}

	if err := s.db.WithContext(ctx).Model(&models.Notification{}).Count(&summary.Notifications).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	observability.Logger.Info("seeding completed",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("likes", summary.Likes),
		slog.Int("comments", summary.Comments),
		slog.Int64("notifications", summary.Notifications),
	)
	return summary, nil
}

// ClearAll deletes every row the application owns, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Notification{}, &models.Comment{}, &models.Like{}, &models.Post{}, &models.Image{}, &models.User{}} {
		if err := db.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.PasswordCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		username := s.username(i)
		user := &models.User{
			Username: username,
			Email:    username + "@example.com",
			Password: string(hash),
		}
		if err := s.store.Users.Create(ctx, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// username derives a name that passes signup validation and is unique within the run.
func (s *Seeder) username(i int) string {
	base := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return -1
	}, s.faker.Username())
	if len(base) < 3 {
		base = "user"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	return fmt.Sprintf("%s_%d", base, i+1)
}

func (s *Seeder) createPosts(ctx context.Context, users []*models.User) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, s.opts.NumPosts)
	for i := 0; i < s.opts.NumPosts; i++ {
		owner := users[s.faker.Number(0, len(users)-1)]
		createdAt := time.Now().UTC().Add(-time.Duration(s.faker.Number(0, s.opts.MaxDays*24*60)) * time.Minute)
		post := &models.Post{
			Title:     strings.TrimSuffix(s.faker.Sentence(5), "."),
			Content:   s.faker.Paragraph(1, 3, 10, " "),
			UserID:    owner.ID,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		if s.faker.Bool() {
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", s.faker.UUID())
		}
		if err := s.store.Posts.Create(ctx, post); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) engage(ctx context.Context, post *models.Post, users []*models.User) (likes, comments int, err error) {
	candidates := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.ID != post.UserID || s.opts.SelfEngagement {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return 0, 0, nil
	}
	s.faker.ShuffleAnySlice(candidates)

	nLikes := min(s.faker.Number(0, s.opts.MaxLikes), len(candidates))
	for _, u := range candidates[:nLikes] {
		if _, err := s.engagement.LikePost(ctx, post.ID, u.ID); err != nil {
			if models.IsCode(err, models.CodeConflict) {
				continue
			}
			return likes, comments, fmt.Errorf("seed like on post %d: %w", post.ID, err)
		}
		likes++
	}

	nComments := s.faker.Number(0, s.opts.MaxComments)
	for i := 0; i < nComments; i++ {
		author := candidates[s.faker.Number(0, len(candidates)-1)]
		if _, err := s.engagement.AddComment(ctx, service.AddCommentInput{
			PostID:  post.ID,
			ActorID: author.ID,
			Content: s.faker.Sentence(s.faker.Number(3, 15)),
		}); err != nil {
			return likes, comments, fmt.Errorf("seed comment on post %d: %w", post.ID, err)
		}
		comments++
	}
	return likes, comments, nil
}
