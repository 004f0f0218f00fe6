// Command main runs the database seeder for the bulletin board.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"bulletin/internal/config"
	"bulletin/internal/database"
	"bulletin/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	comments := flag.Int("comments", 3, "Comments per post")
	rooms := flag.Int("rooms", 10, "Direct chat rooms to open")
	global := flag.Int("global", 50, "Global chat messages to post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Use the cheapest bcrypt cost")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	res, err := seed.Seed(context.Background(), db, seed.Options{
		NumUsers:        *numUsers,
		NumPosts:        *numPosts,
		CommentsPerPost: *comments,
		ChatRooms:       *rooms,
		GlobalMessages:  *global,
		MaxDays:         60,
		SkipBcrypt:      *fast,
		ShouldClean:     *shouldClean,
	})
	if err != nil {
		slog.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("database populated",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.String("password", seed.DemoPassword))
}
