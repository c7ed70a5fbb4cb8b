package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "userdirectory/internal/errors"
	"userdirectory/internal/model"
	"userdirectory/internal/service"
)

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) CreateUser(ctx context.Context, in service.CreateUserInput) (*model.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) FindUsersByEmail(ctx context.Context, email string) ([]model.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) ListUsers(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *mockUserService) UpdateUser(ctx context.Context, id uuid.UUID, in service.UpdateUserInput) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

const seedJSON = `[
  {"fullName": "Ada Lovelace", "email": "ada@example.com", "username": "ada", "password": "analytical"},
  {"firstName": "Grace", "lastName": "Hopper", "email": "grace@example.com", "username": "grace", "password": "cobol1959"}
]`

func TestLoadSeedUsers_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	users, err := loadSeedUsers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ada Lovelace", users[0].FullName)
	assert.Equal(t, "grace", users[1].Username)
}

func TestLoadSeedUsers_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(seedJSON))
	}))
	defer srv.Close()

	users, err := loadSeedUsers(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestLoadSeedUsers_Errors(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := loadSeedUsers(context.Background(), srv.URL)
		assert.ErrorContains(t, err, "404")
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		_, err := loadSeedUsers(context.Background(), path)
		assert.ErrorContains(t, err, "failed to parse JSON")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadSeedUsers(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestSeedUsers(t *testing.T) {
	inputs := []service.CreateUserInput{
		{Username: "ada"},
		{Username: "grace"},
		{Username: "x"},
	}

	t.Run("counts outcomes", func(t *testing.T) {
		svc := new(mockUserService)
		svc.On("CreateUser", mock.Anything, inputs[0]).Return(&model.User{Username: "ada"}, nil)
		svc.On("CreateUser", mock.Anything, inputs[1]).Return(nil, apperrors.ErrUsernameTaken)
		svc.On("CreateUser", mock.Anything, inputs[2]).Return(nil, &apperrors.ValidationError{
			Errors: []apperrors.FieldError{{Field: "username", Rule: apperrors.RuleLength, Message: "Username must be between 3 and 30 characters"}},
		})

		result, err := seedUsers(context.Background(), svc, inputs)
		require.NoError(t, err)
		assert.Equal(t, seedResult{Created: 1, Existing: 1, Invalid: 1}, result)
		svc.AssertExpectations(t)
	})

	t.Run("aborts on store failure", func(t *testing.T) {
		svc := new(mockUserService)
		svc.On("CreateUser", mock.Anything, inputs[0]).Return(nil, errors.New("connection refused"))

		result, err := seedUsers(context.Background(), svc, inputs)
		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, seedResult{}, result)
	})
}
