package orm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// FindPackage looks a package up by its natural key. The repository is
// matched by name; Repository and Maintainer come back populated. A missing
// package is not an error, it returns nil.
func (db DB) FindPackage(
	ctx context.Context,
	name, repository, architecture string,
) (*Package, error) {
	if name == "" || repository == "" || architecture == "" {
		return nil, &BadInputError{
			Reason: fmt.Sprintf(
				"All parameters must be provided: name=%q, repository=%q, architecture=%q",
				name,
				repository,
				architecture,
			),
		}
	}

	var pkg Package

	err := db.gorm.WithContext(ctx).
		Joins("Repository").
		Joins("Maintainer").
		Where("warehouse_packages.name = ? AND warehouse_packages.architecture = ?", name, architecture).
		Where(`"Repository".name = ?`, repository).
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"find package",
			fmt.Sprintf(
				"name=%s, repository=%s, architecture=%s",
				name,
				repository,
				architecture,
			),
		)
	}

	return &pkg, nil
}

// ListPackages returns one display page ordered by name.
func (db DB) ListPackages(ctx context.Context, offset, limit int) ([]Package, error) {
	var packages []Package

	err := db.gorm.WithContext(ctx).
		Joins("Repository").
		Joins("Maintainer").
		Order("warehouse_packages.name").
		Offset(offset).
		Limit(limit).
		Find(&packages).Error
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"list packages",
			fmt.Sprintf("offset=%d, limit=%d", offset, limit),
		)
	}

	return packages, nil
}

func (db DB) CountPackages(ctx context.Context) (int64, error) {
	count, err := gorm.G[Package](db.gorm).Count(ctx, "*")
	if err != nil {
		return 0, wrapErrorWithDetails(err, "count packages", "")
	}

	return count, nil
}

func (db DB) CreatePackage(ctx context.Context, pkg *Package) error {
	err := gorm.G[Package](db.gorm).Create(ctx, pkg)

	return wrapErrorWithDetails(
		err,
		"create package",
		fmt.Sprintf("name=%s, architecture=%s", pkg.Name, pkg.Architecture),
	)
}

// UpdatePackage persists all mutable columns of an existing package row.
func (db DB) UpdatePackage(ctx context.Context, pkg *Package) error {
	err := db.gorm.WithContext(ctx).
		Omit("Repository", "Maintainer").
		Save(pkg).Error

	return wrapErrorWithDetails(
		err,
		"update package",
		fmt.Sprintf("id=%s, name=%s", pkg.ID, pkg.Name),
	)
}

func (db DB) DeletePackage(ctx context.Context, pkg *Package) error {
	_, err := gorm.G[Package](db.gorm).
		Where("id = ?", pkg.ID).
		Delete(ctx)

	return wrapErrorWithDetails(
		err,
		"delete package",
		fmt.Sprintf("id=%s, name=%s", pkg.ID, pkg.Name),
	)
}

func (db DB) ListDependencies(ctx context.Context, packageID string) ([]Dependency, error) {
	dependencies, err := gorm.G[Dependency](db.gorm).
		Where("package_id = ?", packageID).
		Order("name").
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"list dependencies",
			"package_id="+packageID,
		)
	}

	return dependencies, nil
}

func (db DB) CreateDependencies(ctx context.Context, dependencies []Dependency) error {
	if len(dependencies) == 0 {
		return nil
	}

	err := gorm.G[Dependency](db.gorm).CreateInBatches(ctx, &dependencies, 100)

	return wrapErrorWithDetails(err, "create dependencies", "")
}

func (db DB) DeleteDependencies(ctx context.Context, packageID string) error {
	_, err := gorm.G[Dependency](db.gorm).
		Where("package_id = ?", packageID).
		Delete(ctx)

	return wrapErrorWithDetails(
		err,
		"delete dependencies",
		"package_id="+packageID,
	)
}

func (db DB) ListFiles(ctx context.Context, packageID string) ([]File, error) {
	files, err := gorm.G[File](db.gorm).
		Where("package_id = ?", packageID).
		Order("name").
		Find(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list files", "package_id="+packageID)
	}

	return files, nil
}

func (db DB) CreateFiles(ctx context.Context, files []File) error {
	if len(files) == 0 {
		return nil
	}

	err := gorm.G[File](db.gorm).CreateInBatches(ctx, &files, 100)

	return wrapErrorWithDetails(err, "create files", "")
}

func (db DB) DeleteFiles(ctx context.Context, packageID string) error {
	_, err := gorm.G[File](db.gorm).
		Where("package_id = ?", packageID).
		Delete(ctx)

	return wrapErrorWithDetails(err, "delete files", "package_id="+packageID)
}

// ListVersions returns the package's history rows newest-first with their
// maintainers populated.
func (db DB) ListVersions(ctx context.Context, packageID string) ([]Version, error) {
	var versions []Version

	err := db.gorm.WithContext(ctx).
		Joins("Maintainer").
		Where("warehouse_versions.package_id = ?", packageID).
		Order("warehouse_versions.creation_date DESC").
		Find(&versions).Error
	if err != nil {
		return nil, wrapErrorWithDetails(err, "list versions", "package_id="+packageID)
	}

	return versions, nil
}

func (db DB) CreateVersion(ctx context.Context, version *Version) error {
	err := gorm.G[Version](db.gorm).Create(ctx, version)

	return wrapErrorWithDetails(
		err,
		"create version",
		fmt.Sprintf("package_id=%s, version=%s", version.PackageID, version.Version),
	)
}

func (db DB) DeleteVersions(ctx context.Context, packageID string) error {
	_, err := gorm.G[Version](db.gorm).
		Where("package_id = ?", packageID).
		Delete(ctx)

	return wrapErrorWithDetails(err, "delete versions", "package_id="+packageID)
}
