package repository

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

var userColumns = []string{"id", "email", "created_at"}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
}

type userRepository struct {
	q DBTX
}

func NewUserRepository(q DBTX) UserRepository {
	return &userRepository{q: q}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := exec(ctx, r.q, psql.Insert("users").Columns(userColumns...).
		Values(user.ID, user.Email, user.CreatedAt))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := get(ctx, r.q, user, psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := get(ctx, r.q, user, psql.Select(userColumns...).From("users").
		Where(sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))}))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}
