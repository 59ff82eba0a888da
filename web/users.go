package web

import (
	"net/http"
	"time"

	"warehouse/orm"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type signInForm struct {
	Login    string `form:"login"`
	Password string `form:"password"`
}

type signUpForm struct {
	Username             string `form:"username"`
	Email                string `form:"email"`
	Password             string `form:"password"`
	PasswordConfirmation string `form:"password_confirmation"`
}

func (f *signUpForm) valid(r *regexes) bool {
	return r.username.MatchString(f.Username) &&
		r.email.MatchString(f.Email) &&
		r.password.MatchString(f.Password) &&
		f.Password == f.PasswordConfirmation
}

func (h *handlers) serveSignInPage(c *gin.Context) {
	c.HTML(http.StatusOK, "sign_in", gin.H{})
}

func (h *handlers) handleSignInPost(c *gin.Context) {
	form := signInForm{}
	if err := c.ShouldBind(&form); err != nil {
		h.renderErrorPage(c, http.StatusBadRequest)

		return
	}

	user, err := h.db.FindUserByNameOrEmail(c.Request.Context(), form.Login)
	if err != nil {
		h.fail(c, err)

		return
	}
	if user == nil {
		c.HTML(http.StatusOK, "sign_in", gin.H{
			"error": "Incorrect username or email.",
		})

		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(form.Password)) != nil {
		c.HTML(http.StatusOK, "sign_in", gin.H{
			"error": "Incorrect password.",
		})

		return
	}

	h.rememberUser(c, user.ID)
	c.Redirect(http.StatusFound, "/")
}

func (h *handlers) serveSignUpPage(c *gin.Context) {
	c.HTML(http.StatusOK, "sign_up", gin.H{})
}

// handleSignUpPost registers a new user. The first registered user becomes
// admin.
func (h *handlers) handleSignUpPost(c *gin.Context) {
	form := signUpForm{}
	if err := c.ShouldBind(&form); err != nil || !form.valid(h.regexes) {
		h.renderErrorPage(c, http.StatusBadRequest)

		return
	}

	ctx := c.Request.Context()

	exists, err := h.db.UserExists(ctx, form.Username, form.Email)
	if err != nil {
		h.fail(c, err)

		return
	}
	if exists {
		c.HTML(http.StatusOK, "sign_up", gin.H{
			"error": "User already exists with that name or email.",
		})

		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(c, err)

		return
	}

	count, err := h.db.CountUsers(ctx)
	if err != nil {
		h.fail(c, err)

		return
	}

	user := &orm.User{
		ID:           uuid.NewString(),
		CreationDate: time.Now().UTC(),
		Name:         form.Username,
		Email:        form.Email,
		Password:     string(hash),
		Admin:        count == 0,
	}
	if err := h.db.CreateUser(ctx, user); err != nil {
		h.fail(c, err)

		return
	}

	h.rememberUser(c, user.ID)
	c.Redirect(http.StatusFound, "/")
}

func (h *handlers) handleSignOutPost(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(sessionUserKey)
	_ = session.Save()

	c.Redirect(http.StatusFound, "/")
}

func (h *handlers) rememberUser(c *gin.Context, id string) {
	session := sessions.Default(c)
	session.Set(sessionUserKey, id)
	_ = session.Save()
}
