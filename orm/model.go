package orm

import (
	"time"
)

// Package is one binary package in the catalog. At most one row exists per
// (name, architecture, repository) tuple, enforced by a unique index.
type Package struct {
	ID               string    `gorm:"primaryKey;size:36"`
	CreationDate     time.Time `gorm:"not null"`
	ModificationDate time.Time `gorm:"not null"`
	Name             string    `gorm:"size:255;not null;uniqueIndex:idx_package_identity"`
	Version          string    `gorm:"size:255;not null"`
	Description      string    `gorm:"size:1024"`
	URL              string    `gorm:"size:1024"`
	BuildDate        time.Time
	CompressedSize   int64
	InstalledSize    int64
	Architecture     string `gorm:"size:64;not null;uniqueIndex:idx_package_identity"`
	License          string `gorm:"size:255"`
	Extension        string `gorm:"size:64;not null"`
	RepositoryID     string `gorm:"size:36;not null;uniqueIndex:idx_package_identity"`
	MaintainerID     string `gorm:"size:36;not null"`

	Repository Repository `gorm:"foreignKey:RepositoryID"`
	Maintainer User       `gorm:"foreignKey:MaintainerID"`
}

// Dependency is an opaque dependency specifier of a package. The full set is
// replaced on every accepted update.
type Dependency struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:255;not null"`
	PackageID string `gorm:"size:36;not null;index"`
}

// File is one member path inside a package archive, directories excluded.
// The full set is replaced on every accepted update.
type File struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:1024;not null"`
	Size      int64
	PackageID string `gorm:"size:36;not null;index"`
}

// Version is an append-only history row, created on every successful create
// or update and only ever bulk-deleted together with its package.
type Version struct {
	ID           string    `gorm:"primaryKey;size:36"`
	CreationDate time.Time `gorm:"not null"`
	Version      string    `gorm:"size:255;not null"`
	MaintainerID string    `gorm:"size:36;not null"`
	PackageID    string    `gorm:"size:36;not null;index"`

	Maintainer User `gorm:"foreignKey:MaintainerID"`
}

// Repository is a named package collection; Extension is the index archive
// extension ("db" or "files").
type Repository struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:255;not null;uniqueIndex"`
	Extension string `gorm:"size:64;not null"`
}

// User acts as package maintainer; Admin users may update and delete any
// package. The first registered user becomes admin.
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	CreationDate time.Time `gorm:"not null"`
	Name         string    `gorm:"size:255;not null;uniqueIndex"`
	Email        string    `gorm:"size:255;not null;uniqueIndex"`
	Password     string    `gorm:"size:255;not null"`
	Admin        bool      `gorm:"not null"`
}
