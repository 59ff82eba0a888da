package orm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// FindRepositoryByName returns nil when no repository matches.
func (db DB) FindRepositoryByName(ctx context.Context, name string) (*Repository, error) {
	if name == "" {
		return nil, &BadInputError{Reason: "repository name must be provided"}
	}

	repository, err := gorm.G[Repository](db.gorm).
		Where("name = ?", name).
		First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErrorWithDetails(err, "find repository", "name="+name)
	}

	return &repository, nil
}

func (db DB) ListRepositories(ctx context.Context) ([]Repository, error) {
	repositories, err := gorm.G[Repository](db.gorm).
		Order("name").
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list repositories", "")
	}

	return repositories, nil
}

func (db DB) CreateRepository(ctx context.Context, repository *Repository) error {
	if repository.Name == "" || repository.Extension == "" {
		return &BadInputError{
			Reason: fmt.Sprintf(
				"All parameters must be provided: name=%q, extension=%q",
				repository.Name,
				repository.Extension,
			),
		}
	}

	err := gorm.G[Repository](db.gorm).Create(ctx, repository)

	return wrapErrorWithDetails(err, "create repository", "name="+repository.Name)
}
