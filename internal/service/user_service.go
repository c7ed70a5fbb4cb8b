package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"userdirectory/internal/cache"
	apperrors "userdirectory/internal/errors"
	"userdirectory/internal/model"
	"userdirectory/internal/repository"
)

const (
	userCacheTTL = 5 * time.Minute
	bcryptCost   = 10
)

// CreateUserInput carries the candidate fields of a new user.
// FullName is applied first; non-empty FirstName/LastName override its parts.
type CreateUserInput struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	FullName  string     `json:"fullName"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Password  string     `json:"password"`
	Website   string     `json:"website"`
	Created   *time.Time `json:"created"`
}

// UpdateUserInput carries a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	FullName  *string `json:"fullName"`
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	Website   *string `json:"website"`
}

// UserService exposes the user lifecycle.
type UserService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]model.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo     repository.UserRepository
	cache    *cache.Client
	validate *validator.Validate
	now      func() time.Time
	hashCost int
}

// NewUserService builds a UserService with repository, cache and validator.
func NewUserService(repo repository.UserRepository, cache *cache.Client, validate *validator.Validate) UserService {
	return &userService{
		repo:     repo,
		cache:    cache,
		validate: validate,
		now:      time.Now,
		hashCost: bcryptCost,
	}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

func (s *userService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &apperrors.ValidationError{Errors: []apperrors.FieldError{{
			Field:   "password",
			Rule:    apperrors.RuleLength,
			Message: "Password must be at most 72 bytes",
		}}}
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CreateUser validates and normalizes the input, then persists the user.
// Nothing is written when validation fails.
func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	user := &model.User{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
		Website:  in.Website,
	}
	if in.FullName != "" {
		user.SetFullName(in.FullName)
	}
	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	if in.Created != nil {
		user.Created = *in.Created
	}

	logCtx := logrus.WithField("username", user.Username)

	if err := model.ValidateUser(s.validate, user); err != nil {
		logCtx.WithError(err).Info("user rejected by validation")
		return nil, err
	}
	user.ApplyDefaults(s.now())

	hashed, err := s.hashPassword(user.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hashed

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUsernameTaken) {
			logCtx.Warn("username already taken")
			return nil, err
		}
		logCtx.WithError(err).Error("failed to create user")
		return nil, fmt.Errorf("create user: %w", err)
	}

	logCtx.WithField("user_id", user.ID).Info("user created")
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = s.cache.SetJSON(ctx, s.cacheKey(id), user, userCacheTTL)
	return user, nil
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	lookup := model.User{Username: username}
	lookup.Normalize()
	return s.repo.FindByUsername(ctx, lookup.Username)
}

func (s *userService) FindUsersByEmail(ctx context.Context, email string) ([]model.User, error) {
	lookup := model.User{Email: email}
	lookup.Normalize()
	return s.repo.FindByEmail(ctx, lookup.Email)
}

func (s *userService) ListUsers(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	users, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateUser applies a partial update and re-runs every field rule.
// The creation time is never changed.
func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		user.SetFullName(*in.FullName)
	}
	setIfPresent(&user.FirstName, in.FirstName)
	setIfPresent(&user.LastName, in.LastName)
	setIfPresent(&user.Email, in.Email)
	setIfPresent(&user.Username, in.Username)
	setIfPresent(&user.Website, in.Website)
	setIfPresent(&user.Password, in.Password)

	logCtx := logrus.WithFields(logrus.Fields{"user_id": id, "username": user.Username})

	if err := model.ValidateUser(s.validate, user); err != nil {
		logCtx.WithError(err).Info("user update rejected by validation")
		return nil, err
	}

	if in.Password != nil {
		if user.Password, err = s.hashPassword(user.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUsernameTaken) || errors.Is(err, apperrors.ErrUserNotFound) {
			logCtx.WithError(err).Warn("user update refused by store")
			return nil, err
		}
		logCtx.WithError(err).Error("failed to update user")
		return nil, fmt.Errorf("update user: %w", err)
	}

	_ = s.cache.Delete(ctx, s.cacheKey(id))
	logCtx.Info("user updated")
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	logrus.WithField("user_id", id).Info("user deleted")
	return nil
}

func setIfPresent(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
