package warehouse

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"strings"
	"time"

	"warehouse/orm"
	"warehouse/pkginfo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ImportPackage ingests one uploaded package archive for the acting user.
// The multipart form must carry a "repository" text field and a "file"
// upload. Catalog mutations, file placement and the index update run inside
// one transaction; failure anywhere rolls the catalog back and a
// compensating cleanup unwinds the placed file.
func (w *Warehouse) ImportPackage(
	ctx context.Context,
	form *multipart.Form,
	user *orm.User,
) error {
	repositoryName, err := textField(form, "repository")
	if err != nil {
		return err
	}

	repository, err := w.db.FindRepositoryByName(ctx, repositoryName)
	if err != nil {
		return err
	}
	if repository == nil {
		return &RepositoryNotFoundError{Name: repositoryName}
	}

	upload, err := filePart(form, "file")
	if err != nil {
		return err
	}

	tempPath, err := saveUpload(upload)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			log.Warn().Err(err).Str("path", tempPath).Msg("failed to remove upload temp file")
		}
	}()

	info, err := pkginfo.Read(tempPath)
	if err != nil {
		return &ReadPackageError{Inner: err}
	}

	unlock := w.locks.lock(packageKey(info.Name, repository.Name, info.Architecture))
	defer unlock()

	packagePath := w.storage.PackagePath(
		repository.Name,
		info.Architecture,
		info.Name,
		info.Extension,
	)
	indexPath := w.storage.RepositoryIndexPath(
		repository.Name,
		info.Architecture,
		repository.Extension,
	)

	err = w.db.Transaction(func(tx orm.DB) error {
		if err := w.reconcile(ctx, tx, repository, user, info); err != nil {
			return err
		}

		// On updates the new archive lands on the path of the published
		// one, so the old file is stashed first and brought back if
		// placement or the index step fails.
		stash, err := w.storage.Stash(packagePath)
		if err != nil {
			return err
		}

		if err := w.storage.Place(tempPath, packagePath); err != nil {
			w.undoPlacement(stash, packagePath)

			return err
		}

		if err := w.index.Add(ctx, indexPath, packagePath); err != nil {
			w.undoPlacement(stash, packagePath)

			return err
		}

		if stash != "" {
			if err := w.storage.Remove(stash); err != nil {
				log.Warn().
					Err(err).
					Str("path", stash).
					Msg("failed to remove stashed archive")
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("package", info.Name).
		Str("version", info.Version).
		Str("repository", repository.Name).
		Str("architecture", info.Architecture).
		Str("user", user.Name).
		Msg("package imported")

	w.mirrorUpload(ctx, packagePath, indexPath)

	return nil
}

// undoPlacement brings the filesystem back in line with the rolled-back
// catalog: the previously published archive is restored, or the placed
// file is removed when this was a first publication.
func (w *Warehouse) undoPlacement(stash, packagePath string) {
	if stash == "" {
		if err := w.storage.Remove(packagePath); err != nil {
			log.Error().
				Err(err).
				Str("path", packagePath).
				Msg("failed to clean up package file after import failure")
		}

		return
	}

	if err := w.storage.Unstash(stash, packagePath); err != nil {
		log.Error().
			Err(err).
			Str("path", stash).
			Msg("failed to restore previous package file after import failure")
	}
}

// reconcile classifies the incoming package against catalog state and
// applies the create or update algorithm. An existing package may only be
// updated by an admin or its current maintainer, and only to a strictly
// greater version.
func (w *Warehouse) reconcile(
	ctx context.Context,
	tx orm.DB,
	repository *orm.Repository,
	user *orm.User,
	info *pkginfo.PackageInfo,
) error {
	existing, err := tx.FindPackage(ctx, info.Name, repository.Name, info.Architecture)
	if err != nil {
		return err
	}

	if existing == nil {
		return createPackage(ctx, tx, repository, user, info)
	}

	if !user.Admin && existing.MaintainerID != user.ID {
		return ErrUnauthorizedUpdate
	}

	if pkginfo.VerCmp(info.Version, existing.Version) <= 0 {
		return &OlderPackageVersionError{Old: existing.Version, New: info.Version}
	}

	return updatePackage(ctx, tx, user, info, existing)
}

func createPackage(
	ctx context.Context,
	tx orm.DB,
	repository *orm.Repository,
	user *orm.User,
	info *pkginfo.PackageInfo,
) error {
	now := time.Now().UTC()
	pkg := &orm.Package{
		ID:               uuid.NewString(),
		CreationDate:     now,
		ModificationDate: now,
		Name:             info.Name,
		Version:          info.Version,
		Description:      info.Description,
		URL:              info.URL,
		BuildDate:        info.BuildDate,
		CompressedSize:   info.CompressedSize,
		InstalledSize:    info.InstalledSize,
		Architecture:     info.Architecture,
		License:          joinLicenses(info.Licenses),
		Extension:        info.Extension,
		RepositoryID:     repository.ID,
		MaintainerID:     user.ID,
	}
	if err := tx.CreatePackage(ctx, pkg); err != nil {
		return err
	}

	if err := insertChildren(ctx, tx, pkg.ID, info); err != nil {
		return err
	}

	return tx.CreateVersion(ctx, &orm.Version{
		ID:           uuid.NewString(),
		CreationDate: now,
		Version:      info.Version,
		MaintainerID: user.ID,
		PackageID:    pkg.ID,
	})
}

// updatePackage overwrites the package row, fully replaces its dependency
// and file sets, and appends one version history row. Ownership transfers
// to the updating user.
func updatePackage(
	ctx context.Context,
	tx orm.DB,
	user *orm.User,
	info *pkginfo.PackageInfo,
	pkg *orm.Package,
) error {
	now := time.Now().UTC()
	pkg.Version = info.Version
	pkg.Description = info.Description
	pkg.URL = info.URL
	pkg.BuildDate = info.BuildDate
	pkg.CompressedSize = info.CompressedSize
	pkg.InstalledSize = info.InstalledSize
	pkg.License = joinLicenses(info.Licenses)
	pkg.Extension = info.Extension
	pkg.MaintainerID = user.ID
	pkg.ModificationDate = now
	if err := tx.UpdatePackage(ctx, pkg); err != nil {
		return err
	}

	if err := tx.DeleteDependencies(ctx, pkg.ID); err != nil {
		return err
	}
	if err := tx.DeleteFiles(ctx, pkg.ID); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, pkg.ID, info); err != nil {
		return err
	}

	return tx.CreateVersion(ctx, &orm.Version{
		ID:           uuid.NewString(),
		CreationDate: now,
		Version:      info.Version,
		MaintainerID: user.ID,
		PackageID:    pkg.ID,
	})
}

func insertChildren(
	ctx context.Context,
	tx orm.DB,
	packageID string,
	info *pkginfo.PackageInfo,
) error {
	dependencies := make([]orm.Dependency, 0, len(info.Dependencies))
	for _, name := range info.Dependencies {
		dependencies = append(dependencies, orm.Dependency{
			ID:        uuid.NewString(),
			Name:      name,
			PackageID: packageID,
		})
	}
	if err := tx.CreateDependencies(ctx, dependencies); err != nil {
		return err
	}

	files := make([]orm.File, 0, len(info.Files))
	for _, entry := range info.Files {
		files = append(files, orm.File{
			ID:        uuid.NewString(),
			Name:      entry.Name,
			Size:      entry.Size,
			PackageID: packageID,
		})
	}

	return tx.CreateFiles(ctx, files)
}

func joinLicenses(licenses []string) string {
	return strings.Join(licenses, " ")
}

// mirrorUpload replicates the placed archive and the refreshed index to the
// S3 mirror. Mirroring is best-effort; failures are logged, never fatal.
func (w *Warehouse) mirrorUpload(ctx context.Context, paths ...string) {
	if w.mirror == nil {
		return
	}

	for _, path := range paths {
		if err := w.mirror.Upload(ctx, path, w.storage.Key(path)); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to mirror file")
		}
	}
}

func textField(form *multipart.Form, field string) (string, error) {
	values := form.Value[field]
	if len(values) == 0 || values[0] == "" {
		return "", &TextFieldNotFoundError{Field: field}
	}

	return values[0], nil
}

func filePart(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, ErrFileNotFound
	}

	return files[0], nil
}

// saveUpload spools the uploaded part to a named temp file so the metadata
// reader and the placement step can work from a real path.
func saveUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "warehouse-upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())

		return "", fmt.Errorf("spool uploaded file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())

		return "", fmt.Errorf("finish temp file: %w", err)
	}

	return dst.Name(), nil
}
