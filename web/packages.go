package web

import (
	"errors"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"

	"warehouse/warehouse"

	"github.com/gin-gonic/gin"
)

func (h *handlers) servePackageListPage(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.renderErrorPage(c, http.StatusBadRequest)

			return
		}
		page = parsed
	}
	if page < 1 {
		h.renderErrorPage(c, http.StatusBadRequest)

		return
	}

	ctx := c.Request.Context()
	pagingNum := h.cfg.UI.PagingNum

	packages, err := h.db.ListPackages(ctx, (page-1)*pagingNum, pagingNum)
	if err != nil {
		h.fail(c, err)

		return
	}

	count, err := h.db.CountPackages(ctx)
	if err != nil {
		h.fail(c, err)

		return
	}
	pageCount := int(math.Ceil(float64(count) / float64(pagingNum)))

	c.HTML(http.StatusOK, "package_list", gin.H{
		"user":      currentUser(c),
		"page":      page,
		"pageCount": pageCount,
		"packages":  packages,
	})
}

// servePackageOrArchive dispatches the shared /:repository/:architecture/*
// route: archive downloads carry a ".pkg." infix, index downloads end in
// the repository index extension, anything else is a detail page.
func (h *handlers) servePackageOrArchive(c *gin.Context) {
	repository := c.Param("repository")
	architecture := c.Param("architecture")
	file := c.Param("file")

	if strings.Contains(file, ".pkg.") {
		name, extension, _ := strings.Cut(file, ".pkg.")
		h.servePackageArchive(c, repository, architecture, name, "pkg."+extension)

		return
	}

	if extension := strings.TrimPrefix(path.Ext(file), "."); extension == "db" ||
		extension == "files" {
		h.serveRepositoryIndex(c, repository, architecture, extension)

		return
	}

	h.servePackageDetailPage(c, repository, architecture, file)
}

func (h *handlers) servePackageArchive(
	c *gin.Context,
	repository, architecture, name, extension string,
) {
	c.File(h.storage.PackagePath(repository, architecture, name, extension))
}

func (h *handlers) serveRepositoryIndex(
	c *gin.Context,
	repository, architecture, extension string,
) {
	c.File(h.storage.RepositoryIndexPath(repository, architecture, extension))
}

func (h *handlers) servePackageDetailPage(
	c *gin.Context,
	repository, architecture, name string,
) {
	ctx := c.Request.Context()

	pkg, err := h.db.FindPackage(ctx, name, repository, architecture)
	if err != nil {
		h.fail(c, err)

		return
	}
	if pkg == nil {
		h.renderErrorPage(c, http.StatusNotFound)

		return
	}

	files, err := h.db.ListFiles(ctx, pkg.ID)
	if err != nil {
		h.fail(c, err)

		return
	}

	dependencies, err := h.db.ListDependencies(ctx, pkg.ID)
	if err != nil {
		h.fail(c, err)

		return
	}

	versions, err := h.db.ListVersions(ctx, pkg.ID)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.HTML(http.StatusOK, "package_detail", gin.H{
		"user":         currentUser(c),
		"package":      pkg,
		"files":        files,
		"dependencies": dependencies,
		"versions":     versions,
	})
}

func (h *handlers) serveImportPackagePage(c *gin.Context) {
	h.renderImportPage(c, "")
}

func (h *handlers) renderImportPage(c *gin.Context, errorMessage string) {
	repositories, err := h.db.ListRepositories(c.Request.Context())
	if err != nil {
		h.fail(c, err)

		return
	}

	data := gin.H{
		"user":         currentUser(c),
		"repositories": repositories,
	}
	if errorMessage != "" {
		data["error"] = errorMessage
	}

	c.HTML(http.StatusOK, "package_import", data)
}

func (h *handlers) handleImportPackagePost(c *gin.Context) {
	limit := h.cfg.Server.UploadLimit
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			err = &warehouse.FileTooLargeError{Limit: limit}
		}
		h.finishImport(c, err)

		return
	}

	h.finishImport(c, h.warehouse.ImportPackage(c.Request.Context(), form, currentUser(c)))
}

// finishImport maps user-correctable import failures back onto the import
// form; everything else goes through the generic error path.
func (h *handlers) finishImport(c *gin.Context, err error) {
	if err == nil {
		c.Redirect(http.StatusFound, "/")

		return
	}

	if message, ok := warehouse.UserMessage(err); ok {
		h.renderImportPage(c, message)

		return
	}

	h.fail(c, err)
}

func (h *handlers) handleDeletePackagePost(c *gin.Context) {
	found, err := h.warehouse.DeletePackage(
		c.Request.Context(),
		c.Param("repository"),
		c.Param("architecture"),
		c.Param("file"),
	)
	if err != nil {
		h.fail(c, err)

		return
	}
	if !found {
		h.renderErrorPage(c, http.StatusNotFound)

		return
	}

	c.Redirect(http.StatusFound, "/package/list")
}
