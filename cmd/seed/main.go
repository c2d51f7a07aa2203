package main

import (
	"flag"
	"fmt"
	"time"

	"bookstack/internal/model"
	"bookstack/pkg/config"
	"bookstack/pkg/database"
	"bookstack/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	if err := seedDatabase(db, cfg, log); err != nil {
		log.Error("Failed to seed database: %v", err)
		panic(err)
	}

	log.Info("Database seeded successfully!")
}

func seedDatabase(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	testUsers := []struct {
		username    string
		password    string
		permissions []string
	}{
		{"admin", "Adm1npass", []string{"ADMIN"}},
		{"librarian", "L1brarian", []string{"CREATE", "APPROVE", "ARCHIVE", "EDIT"}},
		{"curator", "Cur4torpass", []string{"ARCHIVE", "DELETE"}},
		{"writer", "Wr1terpass", []string{"CREATE"}},
	}

	userIDs := make(map[string]string, len(testUsers))

	for _, userData := range testUsers {
		var existing model.UserModel
		result := db.Where("username = ?", userData.username).First(&existing)
		if result.Error == nil {
			log.Info("User %s already exists, skipping", userData.username)
			userIDs[userData.username] = existing.ID
			continue
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(userData.password), cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user := &model.UserModel{
			Username:     userData.username,
			PasswordHash: string(hashedPassword),
			Permissions:  userData.permissions,
		}
		if err := db.Create(user).Error; err != nil {
			log.Error("Failed to create user %s: %v", userData.username, err)
			continue
		}

		log.Info("Created user: %s", user.Username)
		userIDs[user.Username] = user.ID
	}

	published := func(year int) *time.Time {
		t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return &t
	}

	writerID := userIDs["writer"]
	testBooks := []struct {
		title       string
		description string
		published   *time.Time
		state       string
		tags        [][2]string
	}{
		{
			"Dune", "A desert planet, spice and prophecy", published(1965), "VISIBLE",
			[][2]string{{"AUTHOR", "Frank Herbert"}, {"GENRE", "sci-fi"}},
		},
		{
			"The Left Hand of Darkness", "An envoy on a planet of winter", published(1969), "VISIBLE",
			[][2]string{{"AUTHOR", "Ursula K. Le Guin"}, {"GENRE", "sci-fi"}},
		},
		{
			"The Hobbit", "There and back again", published(1937), "VISIBLE",
			[][2]string{{"AUTHOR", "J. R. R. Tolkien"}, {"GENRE", "fantasy"}},
		},
		{
			"Draft Novel", "Still being written", nil, "DRAFT",
			[][2]string{{"GENRE", "fantasy"}},
		},
		{
			"Submitted Novel", "Waiting for review", nil, "UNAPPROVED",
			[][2]string{{"GENRE", "sci-fi"}},
		},
		{
			"Forgotten Tome", "Out of the catalog", published(1920), "ARCHIVED",
			[][2]string{{"GENRE", "fantasy"}},
		},
	}

	for _, bookData := range testBooks {
		var existing model.BookModel
		result := db.Where("title = ?", bookData.title).First(&existing)
		if result.Error == nil {
			log.Info("Book %q already exists, skipping", bookData.title)
			continue
		}

		tags := make([]model.TagModel, 0, len(bookData.tags))
		for _, pair := range bookData.tags {
			var tag model.TagModel
			if err := db.Where("type = ? AND name = ?", pair[0], pair[1]).
				FirstOrCreate(&tag, model.TagModel{Type: pair[0], Name: pair[1]}).Error; err != nil {
				return fmt.Errorf("failed to upsert tag %s:%s: %w", pair[0], pair[1], err)
			}
			tags = append(tags, tag)
		}

		book := &model.BookModel{
			Title:         bookData.title,
			Description:   bookData.description,
			PublishedDate: bookData.published,
			UserID:        &writerID,
			State:         bookData.state,
			Tags:          tags,
		}
		if err := db.Create(book).Error; err != nil {
			log.Error("Failed to create book %q: %v", bookData.title, err)
			continue
		}

		log.Info("Created book: %s (%s)", book.Title, book.State)
	}

	return nil
}
