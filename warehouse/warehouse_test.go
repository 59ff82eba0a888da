package warehouse

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"warehouse/orm"
	"warehouse/pkginfo"
	"warehouse/repoindex"
	"warehouse/storage"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWarehouse struct {
	*Warehouse

	db      orm.DB
	storage *storage.Storage
	core    *orm.Repository
}

func newTestWarehouse(t *testing.T) *testWarehouse {
	t.Helper()

	db, err := orm.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	core := &orm.Repository{ID: uuid.NewString(), Name: "core", Extension: "db"}
	require.NoError(t, db.CreateRepository(context.Background(), core))

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	return &testWarehouse{
		Warehouse: New(db, store, repoindex.New("true", "true"), nil),
		db:        db,
		storage:   store,
		core:      core,
	}
}

func newTestUser(t *testing.T, db orm.DB, name string, admin bool) *orm.User {
	t.Helper()

	user := &orm.User{
		ID:           uuid.NewString(),
		CreationDate: time.Now().UTC(),
		Name:         name,
		Email:        name + "@example.com",
		Password:     "hash",
		Admin:        admin,
	}
	require.NoError(t, db.CreateUser(context.Background(), user))

	return user
}

type archiveSpec struct {
	name         string
	version      string
	architecture string
	dependencies []string
	files        []string
}

func buildArchive(t *testing.T, spec archiveSpec) []byte {
	t.Helper()

	pkginfo := fmt.Sprintf(
		"pkgname = %s\npkgver = %s\narch = %s\nsize = 2048\nbuilddate = 1729000000\nlicense = MIT\n",
		spec.name,
		spec.version,
		spec.architecture,
	)
	for _, dependency := range spec.dependencies {
		pkginfo += "depend = " + dependency + "\n"
	}

	var tarBuffer bytes.Buffer
	writer := tar.NewWriter(&tarBuffer)
	require.NoError(t, writer.WriteHeader(&tar.Header{
		Name: ".PKGINFO",
		Mode: 0o644,
		Size: int64(len(pkginfo)),
	}))
	_, err := writer.Write([]byte(pkginfo))
	require.NoError(t, err)

	for _, file := range spec.files {
		content := []byte("content of " + file)
		require.NoError(t, writer.WriteHeader(&tar.Header{
			Name: file,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := writer.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = encoder.Write(tarBuffer.Bytes())
	require.NoError(t, err)
	require.NoError(t, encoder.Close())

	return compressed.Bytes()
}

func buildForm(t *testing.T, repository string, archive []byte) *multipart.Form {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if repository != "" {
		require.NoError(t, writer.WriteField("repository", repository))
	}
	if archive != nil {
		part, err := writer.CreateFormFile("file", "upload.pkg.tar.zst")
		require.NoError(t, err)
		_, err = part.Write(archive)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form
}

func TestImportCreatesPackage(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)

	archive := buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
		dependencies: []string{"oniguruma", "glibc"},
		files:        []string{"usr/bin/jq", "usr/share/man/man1/jq.1.gz"},
	})
	form := buildForm(t, "core", archive)

	require.NoError(t, w.ImportPackage(ctx, form, alice))

	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "1.7-1", pkg.Version)
	assert.Equal(t, "MIT", pkg.License)
	assert.Equal(t, "pkg.tar.zst", pkg.Extension)
	assert.Equal(t, int64(2048), pkg.InstalledSize)
	assert.Equal(t, int64(len(archive)), pkg.CompressedSize)
	assert.Equal(t, alice.ID, pkg.MaintainerID)

	dependencies, err := w.db.ListDependencies(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, dependencies, 2)

	files, err := w.db.ListFiles(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)

	versions, err := w.db.ListVersions(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.7-1", versions[0].Version)

	placed := w.storage.PackagePath("core", "x86_64", "jq", "pkg.tar.zst")
	content, err := os.ReadFile(placed)
	require.NoError(t, err)
	assert.Equal(t, archive, content)
}

func TestImportUpdatesPackage(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)
	root := newTestUser(t, w.db, "root", true)

	first := buildForm(t, "core", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
		dependencies: []string{"oniguruma"},
		files:        []string{"usr/bin/jq"},
	}))
	require.NoError(t, w.ImportPackage(ctx, first, alice))

	second := buildForm(t, "core", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.8-1",
		architecture: "x86_64",
		dependencies: []string{"oniguruma", "glibc"},
		files:        []string{"usr/bin/jq", "usr/bin/jqx"},
	}))
	require.NoError(t, w.ImportPackage(ctx, second, root))

	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "1.8-1", pkg.Version)
	// Ownership moves to whoever performed the accepted update.
	assert.Equal(t, root.ID, pkg.MaintainerID)

	dependencies, err := w.db.ListDependencies(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Len(t, dependencies, 2)

	files, err := w.db.ListFiles(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	versions, err := w.db.ListVersions(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.8-1", versions[0].Version)
	assert.Equal(t, "1.7-1", versions[1].Version)
}

func TestImportRejectsOlderVersion(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	root := newTestUser(t, w.db, "root", true)

	current := buildForm(t, "core", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.8-1",
		architecture: "x86_64",
	}))
	require.NoError(t, w.ImportPackage(ctx, current, root))

	t.Run("Older", func(t *testing.T) {
		older := buildForm(t, "core", buildArchive(t, archiveSpec{
			name:         "jq",
			version:      "1.7-1",
			architecture: "x86_64",
		}))
		err := w.ImportPackage(ctx, older, root)
		var versionErr *OlderPackageVersionError
		require.ErrorAs(t, err, &versionErr)
		assert.Equal(t, "1.8-1", versionErr.Old)
		assert.Equal(t, "1.7-1", versionErr.New)
	})

	t.Run("Equal", func(t *testing.T) {
		same := buildForm(t, "core", buildArchive(t, archiveSpec{
			name:         "jq",
			version:      "1.8-1",
			architecture: "x86_64",
		}))
		var versionErr *OlderPackageVersionError
		assert.ErrorAs(t, w.ImportPackage(ctx, same, root), &versionErr)
	})

	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "1.8-1", pkg.Version)
}

func TestImportRejectsForeignMaintainer(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)
	bob := newTestUser(t, w.db, "bob", false)

	first := buildForm(t, "core", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
	}))
	require.NoError(t, w.ImportPackage(ctx, first, alice))

	newer := buildForm(t, "core", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.8-1",
		architecture: "x86_64",
	}))
	assert.ErrorIs(t, w.ImportPackage(ctx, newer, bob), ErrUnauthorizedUpdate)

	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "1.7-1", pkg.Version)
	assert.Equal(t, alice.ID, pkg.MaintainerID)
}

func TestImportUnknownRepository(t *testing.T) {
	w := newTestWarehouse(t)
	alice := newTestUser(t, w.db, "alice", false)

	form := buildForm(t, "community", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
	}))

	err := w.ImportPackage(context.Background(), form, alice)
	var notFound *RepositoryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "community", notFound.Name)
}

func TestImportMissingFormParts(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)
	archive := buildArchive(t, archiveSpec{name: "jq", version: "1.7-1", architecture: "x86_64"})

	t.Run("NoRepositoryField", func(t *testing.T) {
		err := w.ImportPackage(ctx, buildForm(t, "", archive), alice)
		var missing *TextFieldNotFoundError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "repository", missing.Field)
	})

	t.Run("NoFilePart", func(t *testing.T) {
		err := w.ImportPackage(ctx, buildForm(t, "core", nil), alice)
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}

func TestImportRejectsUnreadableArchive(t *testing.T) {
	w := newTestWarehouse(t)
	alice := newTestUser(t, w.db, "alice", false)

	form := buildForm(t, "core", []byte("certainly not a package"))

	err := w.ImportPackage(context.Background(), form, alice)
	var readErr *ReadPackageError
	assert.ErrorAs(t, err, &readErr)
}

func TestImportRollsBackOnIndexFailure(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)

	// Swap in an index tool that always fails.
	w.Warehouse.index = repoindex.New("false", "false")

	archive := buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
	})
	require.Error(t, w.ImportPackage(ctx, buildForm(t, "core", archive), alice))

	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	assert.Nil(t, pkg)

	placed := w.storage.PackagePath("core", "x86_64", "jq", "pkg.tar.zst")
	_, err = os.Stat(placed)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestImportIndexFailureKeepsPublishedArchive(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)

	published := buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
	})
	require.NoError(t, w.ImportPackage(ctx, buildForm(t, "core", published), alice))

	// The newer version fails at the index step.
	w.Warehouse.index = repoindex.New("false", "false")
	newer := buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.8-1",
		architecture: "x86_64",
	})
	require.Error(t, w.ImportPackage(ctx, buildForm(t, "core", newer), alice))

	// The catalog still advertises the old version and its archive must
	// still be downloadable.
	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "1.7-1", pkg.Version)

	placed := w.storage.PackagePath("core", "x86_64", "jq", "pkg.tar.zst")
	content, err := os.ReadFile(placed)
	require.NoError(t, err)
	assert.Equal(t, published, content)

	// No stash leftovers next to the restored archive.
	entries, err := os.ReadDir(filepath.Dir(placed))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestImportUpdateLeavesNoStash(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)

	first := buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
	})
	require.NoError(t, w.ImportPackage(ctx, buildForm(t, "core", first), alice))

	second := buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.8-1",
		architecture: "x86_64",
	})
	require.NoError(t, w.ImportPackage(ctx, buildForm(t, "core", second), alice))

	placed := w.storage.PackagePath("core", "x86_64", "jq", "pkg.tar.zst")
	content, err := os.ReadFile(placed)
	require.NoError(t, err)
	assert.Equal(t, second, content)

	entries, err := os.ReadDir(filepath.Dir(placed))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeletePackage(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	alice := newTestUser(t, w.db, "alice", false)

	form := buildForm(t, "core", buildArchive(t, archiveSpec{
		name:         "jq",
		version:      "1.7-1",
		architecture: "x86_64",
		dependencies: []string{"glibc"},
		files:        []string{"usr/bin/jq"},
	}))
	require.NoError(t, w.ImportPackage(ctx, form, alice))

	pkg, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	require.NotNil(t, pkg)

	found, err := w.DeletePackage(ctx, "core", "x86_64", "jq")
	require.NoError(t, err)
	assert.True(t, found)

	gone, err := w.db.FindPackage(ctx, "jq", "core", "x86_64")
	require.NoError(t, err)
	assert.Nil(t, gone)

	dependencies, err := w.db.ListDependencies(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Empty(t, dependencies)

	versions, err := w.db.ListVersions(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	placed := w.storage.PackagePath("core", "x86_64", "jq", "pkg.tar.zst")
	_, err = os.Stat(placed)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDeleteMissingPackage(t *testing.T) {
	w := newTestWarehouse(t)

	found, err := w.DeletePackage(context.Background(), "core", "x86_64", "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&FileTooLargeError{Limit: 1024}, "File too large. Limited to 1024 bytes."},
		{&ReadPackageError{Inner: &pkginfo.InvalidPackageError{Reason: "missing .PKGINFO"}}, "Invalid package format."},
		{&ReadPackageError{Inner: pkginfo.ErrUnsupportedFileType}, "Unsupported file type."},
		{&OlderPackageVersionError{Old: "2.0-1", New: "1.0-1"}, "Package already exists in a more recent version. 1.0-1 <= 2.0-1."},
		{ErrUnauthorizedUpdate, "You are not the maintainer of the package."},
	}
	for _, tc := range cases {
		message, ok := UserMessage(tc.err)
		assert.True(t, ok, "%v", tc.err)
		assert.Equal(t, tc.want, message)
	}

	_, ok := UserMessage(errors.New("internal"))
	assert.False(t, ok)
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(&RepositoryNotFoundError{Name: "x"}))
	assert.True(t, IsInputError(&TextFieldNotFoundError{Field: "repository"}))
	assert.True(t, IsInputError(ErrFileNotFound))
	assert.True(t, IsInputError(ErrUnauthorizedUpdate))
	assert.False(t, IsInputError(errors.New("database on fire")))
}
