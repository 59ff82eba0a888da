// Package web is the HTTP surface: routing, session authentication and
// server-rendered pages over the warehouse core.
package web

import (
	"encoding/base64"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"warehouse/config"
	"warehouse/orm"
	"warehouse/storage"
	"warehouse/warehouse"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	cfg       *config.Config
	db        orm.DB
	warehouse *warehouse.Warehouse
	storage   *storage.Storage
	regexes   *regexes
}

// NewRouter wires all routes. Authorization lives here: package deletion is
// admin-only by route, import requires a signed-in user.
func NewRouter(
	cfg *config.Config,
	db orm.DB,
	wh *warehouse.Warehouse,
	store *storage.Storage,
) *gin.Engine {
	h := &handlers{
		cfg:       cfg,
		db:        db,
		warehouse: wh,
		storage:   store,
		regexes:   compileRegexes(),
	}

	router := gin.New()
	router.Use(accessLog(), gin.Recovery())

	secret, err := base64.StdEncoding.DecodeString(cfg.Session.SecretKey)
	if err != nil {
		// Fall back to the raw value for keys not stored base64-encoded.
		secret = []byte(cfg.Session.SecretKey)
	}
	sessionStore := cookie.NewStore(secret)
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		Secure:   cfg.Session.CookieSecure,
		HttpOnly: true,
	})
	router.Use(sessions.Sessions(cfg.Session.CookieName, sessionStore))
	router.Use(h.authenticate)

	templatesDir := filepath.Join(cfg.Storage.ResourcesDir, "templates")
	staticDir := filepath.Join(cfg.Storage.ResourcesDir, "static")
	router.SetFuncMap(template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	})
	router.LoadHTMLGlob(filepath.Join(templatesDir, "*.html"))
	router.Static("/static", staticDir)
	router.StaticFile("/favicon.ico", filepath.Join(staticDir, "favicon.ico"))

	router.GET("/", h.serveIndexPage)
	router.GET("/admin", h.requireUser, h.requireAdmin, h.serveAdminPage)

	pkg := router.Group("/package")
	{
		pkg.GET("/list", h.servePackageListPage)
		pkg.GET("/import", h.requireUser, h.serveImportPackagePage)
		pkg.POST("/import", h.requireUser, h.handleImportPackagePost)
		pkg.GET("/:repository/:architecture/:file", h.servePackageOrArchive)
		pkg.POST(
			"/:repository/:architecture/:file/delete",
			h.requireUser,
			h.requireAdmin,
			h.handleDeletePackagePost,
		)
	}

	user := router.Group("/user")
	{
		user.GET("/sign_in", h.redirectIfAuthenticated, h.serveSignInPage)
		user.POST("/sign_in", h.redirectIfAuthenticated, h.handleSignInPost)
		user.GET("/sign_up", h.redirectIfAuthenticated, h.serveSignUpPage)
		user.POST("/sign_up", h.redirectIfAuthenticated, h.handleSignUpPost)
		user.POST("/sign_out", h.handleSignOutPost)
	}

	return router
}

// accessLog emits one zerolog event per request.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}

// renderErrorPage renders the generic error page with the given status.
func (h *handlers) renderErrorPage(c *gin.Context, status int) {
	c.HTML(status, "error", gin.H{
		"user":   currentUser(c),
		"status": status,
	})
	c.Abort()
}

// fail logs an infrastructure error and renders a 500 page; input errors
// render a 400 without logging noise.
func (h *handlers) fail(c *gin.Context, err error) {
	if warehouse.IsInputError(err) {
		h.renderErrorPage(c, http.StatusBadRequest)

		return
	}

	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Error in response")
	h.renderErrorPage(c, http.StatusInternalServerError)
}
