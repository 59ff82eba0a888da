package warehouse

import (
	"context"

	"warehouse/orm"

	"github.com/rs/zerolog/log"
)

// DeletePackage removes a package from the index archive, the filesystem
// and the catalog. A missing package is not an error; the boolean reports
// whether anything was deleted. Authorization is the route layer's
// responsibility, not this operation's.
func (w *Warehouse) DeletePackage(
	ctx context.Context,
	repository, architecture, name string,
) (bool, error) {
	unlock := w.locks.lock(packageKey(name, repository, architecture))
	defer unlock()

	pkg, err := w.db.FindPackage(ctx, name, repository, architecture)
	if err != nil {
		return false, err
	}
	if pkg == nil {
		return false, nil
	}

	indexPath := w.storage.RepositoryIndexPath(
		repository,
		architecture,
		pkg.Repository.Extension,
	)
	if err := w.index.Remove(ctx, indexPath, name); err != nil {
		return false, err
	}

	packagePath := w.storage.PackagePath(repository, architecture, name, pkg.Extension)
	if err := w.storage.Remove(packagePath); err != nil {
		return false, err
	}

	// Children before parent; no database-level cascade is relied on.
	err = w.db.Transaction(func(tx orm.DB) error {
		if err := tx.DeleteVersions(ctx, pkg.ID); err != nil {
			return err
		}
		if err := tx.DeleteDependencies(ctx, pkg.ID); err != nil {
			return err
		}
		if err := tx.DeleteFiles(ctx, pkg.ID); err != nil {
			return err
		}

		return tx.DeletePackage(ctx, pkg)
	})
	if err != nil {
		return false, err
	}

	log.Info().
		Str("package", name).
		Str("repository", repository).
		Str("architecture", architecture).
		Msg("package deleted")

	w.mirrorDelete(ctx, packagePath)
	w.mirrorUpload(ctx, indexPath)

	return true, nil
}

// mirrorDelete removes replicated objects from the S3 mirror, best-effort.
func (w *Warehouse) mirrorDelete(ctx context.Context, paths ...string) {
	if w.mirror == nil {
		return
	}

	for _, path := range paths {
		if err := w.mirror.Delete(ctx, w.storage.Key(path)); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to remove mirrored file")
		}
	}
}
