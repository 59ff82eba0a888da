package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handlers) serveIndexPage(c *gin.Context) {
	count, err := h.db.CountPackages(c.Request.Context())
	if err != nil {
		h.fail(c, err)

		return
	}

	c.HTML(http.StatusOK, "index", gin.H{
		"user":         currentUser(c),
		"packageCount": count,
	})
}

func (h *handlers) serveAdminPage(c *gin.Context) {
	ctx := c.Request.Context()

	packageCount, err := h.db.CountPackages(ctx)
	if err != nil {
		h.fail(c, err)

		return
	}

	userCount, err := h.db.CountUsers(ctx)
	if err != nil {
		h.fail(c, err)

		return
	}

	repositories, err := h.db.ListRepositories(ctx)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.HTML(http.StatusOK, "admin", gin.H{
		"user":         currentUser(c),
		"packageCount": packageCount,
		"userCount":    userCount,
		"repositories": repositories,
		"dataDir":      h.cfg.Storage.DataDir,
		"uploadLimit":  h.cfg.Server.UploadLimit,
	})
}
