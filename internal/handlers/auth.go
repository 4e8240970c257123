package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"quill/internal/middleware"
	"quill/internal/services"
)

const captchaSessionKey = "captcha_answer"

type AuthHandler struct {
	accounts *services.AccountService
	captcha  *services.CaptchaService
}

// NewAuthHandler wires the identity views. A nil captcha turns the signup
// challenge off.
func NewAuthHandler(accounts *services.AccountService, captcha *services.CaptchaService) *AuthHandler {
	return &AuthHandler{accounts: accounts, captcha: captcha}
}

// newChallenge stores a fresh answer in the session and returns the question.
func (h *AuthHandler) newChallenge(c *gin.Context) string {
	if h.captcha == nil {
		return ""
	}
	question, answer := h.captcha.Challenge()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save captcha")
	}
	return question
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	Render(c, http.StatusOK, "auth/register.html", gin.H{"Captcha": h.newChallenge(c)})
}

func (h *AuthHandler) Register(c *gin.Context) {
	in := services.RegisterInput{
		Username:        c.PostForm("username"),
		Email:           c.PostForm("email"),
		FirstName:       c.PostForm("first_name"),
		LastName:        c.PostForm("last_name"),
		Password:        c.PostForm("password1"),
		PasswordConfirm: c.PostForm("password2"),
	}
	form := gin.H{
		"Username":  in.Username,
		"Email":     in.Email,
		"FirstName": in.FirstName,
		"LastName":  in.LastName,
	}

	if h.captcha != nil {
		session := sessions.Default(c)
		expected, ok := session.Get(captchaSessionKey).(int)
		if !ok || !h.captcha.Check(c.PostForm("captcha"), expected) {
			Render(c, http.StatusBadRequest, "auth/register.html", gin.H{
				"Form":    form,
				"Errors":  services.FieldErrors{"captcha": "Incorrect answer, please try again."},
				"Captcha": h.newChallenge(c),
			})
			return
		}
		session.Delete(captchaSessionKey)
	}

	user, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		if !services.IsValidation(err) {
			renderServiceError(c, err)
			return
		}
		Render(c, http.StatusBadRequest, "auth/register.html", gin.H{
			"Form":    form,
			"Errors":  formErrors(err),
			"Error":   "Registration failed. Please fix the errors.",
			"Captcha": h.newChallenge(c),
		})
		return
	}

	if err := middleware.Login(c, user); err != nil {
		renderServiceError(c, err)
		return
	}
	Flash(c, flashSuccess, "Registration successful.")
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", gin.H{"Next": c.Query("next")})
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	next := c.PostForm("next")

	user, err := h.accounts.Authenticate(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
				"Error":    "Invalid username or password.",
				"Username": username,
				"Next":     next,
			})
			return
		}
		renderServiceError(c, err)
		return
	}

	if err := middleware.Login(c, user); err != nil {
		renderServiceError(c, err)
		return
	}
	Flash(c, flashSuccess, "Login successful.")
	c.Redirect(http.StatusFound, safeNext(next))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to clear session")
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) ShowProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	Render(c, http.StatusOK, "auth/profile.html", gin.H{
		"Form": gin.H{
			"Email":     user.Email,
			"FirstName": user.FirstName,
			"LastName":  user.LastName,
		},
	})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	in := services.ProfileInput{
		Email:     c.PostForm("email"),
		FirstName: c.PostForm("first_name"),
		LastName:  c.PostForm("last_name"),
	}

	if err := h.accounts.UpdateProfile(c.Request.Context(), user, in); err != nil {
		if !services.IsValidation(err) {
			renderServiceError(c, err)
			return
		}
		Render(c, http.StatusBadRequest, "auth/profile.html", gin.H{
			"Form":   gin.H{"Email": in.Email, "FirstName": in.FirstName, "LastName": in.LastName},
			"Errors": formErrors(err),
		})
		return
	}

	Flash(c, flashSuccess, "Profile updated.")
	c.Redirect(http.StatusFound, "/profile")
}
