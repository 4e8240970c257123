package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"quill/internal/handlers"
	"quill/internal/middleware"
	"quill/internal/services"
)

// Deps carries everything the routes need.
type Deps struct {
	Accounts   *services.AccountService
	Blog       *services.BlogService
	Comments   *services.CommentService
	Dispatcher *services.Dispatcher
	Captcha    *services.CaptchaService // nil disables the signup challenge

	SessionName   string
	SessionSecret string
	SecureCookies bool

	StaticDir string // optional
	MediaDir  string // optional, served under MediaURL
	MediaURL  string
}

// RegisterRoutes installs the session middleware and every route on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   d.SecureCookies,
	})
	r.Use(sessions.Sessions(d.SessionName, store))
	r.Use(middleware.LoadUser(d.Accounts))

	if d.StaticDir != "" {
		r.Static("/static", d.StaticDir)
	}
	if d.MediaDir != "" && d.MediaURL != "" {
		r.Static(d.MediaURL, d.MediaDir)
	}

	authHandler := handlers.NewAuthHandler(d.Accounts, d.Captcha)
	blogHandler := handlers.NewBlogHandler(d.Blog, d.Comments, d.Dispatcher)

	r.GET("/signup", authHandler.ShowRegister)
	r.POST("/signup", authHandler.Register)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/", blogHandler.List)

		authorized.GET("/posts/new", blogHandler.ShowCreate)
		authorized.POST("/posts/new", blogHandler.Create)
		authorized.GET("/posts/:slug", blogHandler.Detail)
		authorized.POST("/posts/:slug", blogHandler.AddComment)
		authorized.POST("/posts/:slug/comments/:id/delete", blogHandler.DeleteComment)
		authorized.GET("/posts/:slug/edit", blogHandler.ShowEdit)
		authorized.POST("/posts/:slug/edit", blogHandler.Update)
		authorized.GET("/posts/:slug/delete", blogHandler.ShowDelete)
		authorized.POST("/posts/:slug/delete", blogHandler.Delete)

		authorized.GET("/profile", authHandler.ShowProfile)
		authorized.POST("/profile", authHandler.UpdateProfile)
	}
}
