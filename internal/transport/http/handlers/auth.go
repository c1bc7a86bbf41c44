package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/usecase"
)

// Authenticator is the login operation the handler depends on.
type Authenticator interface {
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginResult, error)
}

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds POST /login, running loginMiddlewares ahead of the handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login", append(chain, h.login)...)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithLoginError(c, usecase.ErrMissingCredentials)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Alias:  strings.TrimSpace(req.Alias),
		Secret: req.Secret,
	})
	if err != nil {
		if usecase.ErrorKind(err) == domain.LoginErrorInternal {
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		}
		RespondWithLoginError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginSuccessResponse{
		Success:       true,
		Account:       newAccountPayload(result.Account),
		Authorization: newAuthorizationPayload(result.Authorization),
	})
}
