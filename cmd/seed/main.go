// Command main runs the database seeder for Ripple.
package main

import (
	"context"
	"flag"
	"log"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/observability"
	"ripple/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	maxLikes := flag.Int("likes", 5, "Maximum likes per post")
	maxComments := flag.Int("comments", 3, "Maximum comments per post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randomSeed := flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.InitLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	summary, err := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		MaxLikes:    *maxLikes,
		MaxComments: *maxComments,
		Clean:       *shouldClean,
		RandomSeed:  *randomSeed,
	}).Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d likes, %d comments, %d notifications",
		summary.Users, summary.Posts, summary.Likes, summary.Comments, summary.Notifications)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
