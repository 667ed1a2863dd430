package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/accounts-api/internal/middleware"
	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/internal/token"
	"github.com/noah-isme/accounts-api/pkg/config"
)

// RegisterRoutes mounts the API surface under the configured prefix.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, codec *token.Codec, blacklist middleware.RevocationChecker, auth *AuthHandler, sessions *SessionHandler, oauth *OAuthHandler, users *UserHandler) {
	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.POST("/refresh", auth.Refresh)
		authGroup.POST("/logout", auth.Logout)

		protected := authGroup.Group("", middleware.JWT(codec, blacklist))
		{
			protected.GET("/me", auth.Me)
			protected.POST("/change-password", auth.ChangePassword)
			protected.GET("/sessions", sessions.List)
			protected.DELETE("/sessions", sessions.RevokeOthers)
			protected.DELETE("/sessions/:id", sessions.Revoke)
		}
	}

	oauthGroup := api.Group("/oauth")
	{
		oauthGroup.GET("/:provider", oauth.Redirect)
		oauthGroup.GET("/:provider/callback", oauth.Callback)
	}

	admin := api.Group("/users", middleware.JWT(codec, blacklist), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("", users.List)
		admin.GET("/:id", users.Get)
		admin.PUT("/:id/role", users.UpdateRole)
		admin.DELETE("/:id", users.Deactivate)
	}
}
