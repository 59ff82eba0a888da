package orm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

func (db DB) CountUsers(ctx context.Context) (int64, error) {
	count, err := gorm.G[User](db.gorm).Count(ctx, "*")
	if err != nil {
		return 0, wrapErrorWithDetails(err, "count users", "")
	}

	return count, nil
}

func (db DB) CreateUser(ctx context.Context, user *User) error {
	err := gorm.G[User](db.gorm).Create(ctx, user)

	return wrapErrorWithDetails(
		err,
		"create user",
		fmt.Sprintf("name=%s, email=%s", user.Name, user.Email),
	)
}

// UserExists reports whether any user already claims the name or the email.
func (db DB) UserExists(ctx context.Context, name, email string) (bool, error) {
	count, err := gorm.G[User](db.gorm).
		Where("name = ? OR email = ?", name, email).
		Count(ctx, "*")
	if err != nil {
		return false, wrapErrorWithDetails(
			err,
			"check user exists",
			fmt.Sprintf("name=%s, email=%s", name, email),
		)
	}

	return count > 0, nil
}

// FindUserByID returns nil when no user matches.
func (db DB) FindUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, &BadInputError{Reason: "user id must be provided"}
	}

	user, err := gorm.G[User](db.gorm).
		Where("id = ?", id).
		First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErrorWithDetails(err, "find user by id", "id="+id)
	}

	return &user, nil
}

// FindUserByNameOrEmail resolves the sign-in field; returns nil when no
// user matches.
func (db DB) FindUserByNameOrEmail(ctx context.Context, field string) (*User, error) {
	if field == "" {
		return nil, &BadInputError{Reason: "login field must be provided"}
	}

	user, err := gorm.G[User](db.gorm).
		Where("name = ? OR email = ?", field, field).
		First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErrorWithDetails(err, "find user by name or email", "field="+field)
	}

	return &user, nil
}
