// Package warehouse implements the ingestion pipeline: importing uploaded
// package archives into the catalog, the filesystem and the repository
// index, and deleting them again.
package warehouse

import (
	"warehouse/orm"
	"warehouse/repoindex"
	"warehouse/storage"
)

// Warehouse sequences catalog, filesystem and index mutations for imports
// and deletions. Mirror is optional; when nil nothing is replicated.
type Warehouse struct {
	db      orm.DB
	storage *storage.Storage
	index   repoindex.Tool
	mirror  *storage.Mirror
	locks   keyLocks
}

func New(
	db orm.DB,
	store *storage.Storage,
	index repoindex.Tool,
	mirror *storage.Mirror,
) *Warehouse {
	return &Warehouse{
		db:      db,
		storage: store,
		index:   index,
		mirror:  mirror,
	}
}
