package web

import (
	"net/http"
	"regexp"

	"warehouse/orm"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionUserKey = "user_id"
	contextUserKey = "current_user"
)

// authenticate resolves the session's user id into a catalog user for the
// duration of the request. An unknown or stale id just means no user.
func (h *handlers) authenticate(c *gin.Context) {
	session := sessions.Default(c)
	id, ok := session.Get(sessionUserKey).(string)
	if !ok || id == "" {
		c.Next()

		return
	}

	user, err := h.db.FindUserByID(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve session user")
		h.renderErrorPage(c, http.StatusInternalServerError)

		return
	}
	if user != nil {
		c.Set(contextUserKey, user)
	}

	c.Next()
}

// currentUser returns the signed-in user, or nil.
func currentUser(c *gin.Context) *orm.User {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*orm.User)
	if !ok {
		return nil
	}

	return user
}

func (h *handlers) requireUser(c *gin.Context) {
	if currentUser(c) == nil {
		c.Redirect(http.StatusFound, "/user/sign_in")
		c.Abort()

		return
	}

	c.Next()
}

func (h *handlers) requireAdmin(c *gin.Context) {
	user := currentUser(c)
	if user == nil || !user.Admin {
		c.Redirect(http.StatusFound, "/")
		c.Abort()

		return
	}

	c.Next()
}

func (h *handlers) redirectIfAuthenticated(c *gin.Context) {
	if currentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		c.Abort()

		return
	}

	c.Next()
}

// regexes validate the sign-up form fields.
type regexes struct {
	username *regexp.Regexp
	email    *regexp.Regexp
	password *regexp.Regexp
}

func compileRegexes() *regexes {
	return &regexes{
		username: regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{1,30}[a-zA-Z0-9]$`),
		email:    regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`),
		// bcrypt truncates beyond 72 bytes
		password: regexp.MustCompile(`^.{8,72}$`),
	}
}
