package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	apperrors "userdirectory/internal/errors"
	"userdirectory/internal/model"
)

// UserRepository defines persistence operations.
// Implementations return errors.ErrUserNotFound for missing records and
// errors.ErrUsernameTaken when the unique username index rejects a write.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) ([]model.User, error)
	List(ctx context.Context, offset, limit int) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return mapWriteError(err, "create user %s", user.Username)
	}
	return nil
}

// Update saves every column except created, which is create-only.
// It returns ErrUserNotFound when the row no longer exists.
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(user).Select("*").Omit("id", "created").Updates(user)
	if res.Error != nil {
		return mapWriteError(res.Error, "update user %s", user.ID)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL counts only changed rows, so zero may still mean the row exists.
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("check user %s: %w", user.ID, err)
	}
	if n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return fmt.Errorf("delete user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapReadError(err, "find user %s", id)
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, mapReadError(err, "find user by username %q", username)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("created").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("find users by email: %w", err)
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context, offset, limit int) ([]model.User, error) {
	var users []model.User
	q := r.db.WithContext(ctx).Order("created").Order("username").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func mapReadError(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func mapWriteError(err error, format string, args ...interface{}) error {
	if isDuplicateKey(err) {
		return apperrors.ErrUsernameTaken
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// isDuplicateKey recognizes unique violations from every supported driver,
// including when the dialector did not translate the error.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
