package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"userdirectory/internal/config"
	"userdirectory/internal/db"
	apperrors "userdirectory/internal/errors"
	"userdirectory/internal/logger"
	"userdirectory/internal/model"
	"userdirectory/internal/repository"
	"userdirectory/internal/service"
)

// seedResult counts what happened to each seed record.
type seedResult struct {
	Created  int
	Existing int
	Invalid  int
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	logrus.Info("Starting seed script...")

	var userRepo repository.UserRepository
	if cfg.DBDriver == db.DriverMongo {
		mongoDB, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logrus.Fatalf("Failed to connect to mongo: %v", err)
		}
		defer mongoDB.Client().Disconnect(context.Background())
		if err := repository.EnsureUserIndexes(ctx, mongoDB); err != nil {
			logrus.Fatalf("Failed to create indexes: %v", err)
		}
		userRepo = repository.NewMongoUserRepository(mongoDB)
	} else {
		gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
		if err != nil {
			logrus.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(gormDB, false); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		userRepo = repository.NewUserRepository(gormDB)
	}
	logrus.WithField("driver", cfg.DBDriver).Info("Connected to database")

	logrus.Infof("Loading users from: %s", cfg.SeedSource)
	users, err := loadSeedUsers(ctx, cfg.SeedSource)
	if err != nil {
		logrus.Fatalf("Failed to load seed users: %v", err)
	}
	logrus.Infof("Loaded %d users", len(users))

	// seeding needs no cache
	userService := service.NewUserService(userRepo, nil, model.NewValidator())
	result, err := seedUsers(ctx, userService, users)
	if err != nil {
		logrus.Fatalf("Failed to seed users: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"created":  result.Created,
		"existing": result.Existing,
		"invalid":  result.Invalid,
	}).Info("Seed completed")
}

// loadSeedUsers reads a JSON array of users from a local file or an http(s) URL.
func loadSeedUsers(ctx context.Context, source string) ([]service.CreateUserInput, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var users []service.CreateUserInput
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return users, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// seedUsers creates every user, skipping invalid records and taken usernames.
// Any other error aborts the run.
func seedUsers(ctx context.Context, svc service.UserService, users []service.CreateUserInput) (seedResult, error) {
	var result seedResult
	for i, in := range users {
		_, err := svc.CreateUser(ctx, in)

		var validationErr *apperrors.ValidationError
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, apperrors.ErrUsernameTaken):
			result.Existing++
		case errors.As(err, &validationErr):
			logrus.WithFields(logrus.Fields{
				"index":    i,
				"username": in.Username,
			}).Warnf("Skipping invalid user: %v", validationErr)
			result.Invalid++
		default:
			return result, fmt.Errorf("error creating user %q: %w", in.Username, err)
		}
	}
	return result, nil
}
