package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/transport/http/middleware"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/usecase"
)

// ErrorCase maps a login sentinel to its error kind and HTTP status.
type ErrorCase struct {
	Err    error
	Kind   domain.LoginErrorKind
	Status int
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrMissingCredentials, Kind: domain.LoginErrorMissingCredentials, Status: http.StatusBadRequest},
	{Err: usecase.ErrInvalidCredentials, Kind: domain.LoginErrorInvalidCredentials, Status: http.StatusUnauthorized},
	{Err: usecase.ErrUserBlocked, Kind: domain.LoginErrorUserBlocked, Status: http.StatusForbidden},
	{Err: usecase.ErrUserInactive, Kind: domain.LoginErrorUserInactive, Status: http.StatusForbidden},
}

// RespondWithLoginError writes the failure body for err. Unmatched errors are
// reported as INTERNAL_ERROR without exposing their text.
func RespondWithLoginError(c *gin.Context, err error) {
	for _, cs := range loginErrorCases {
		if errors.Is(err, cs.Err) {
			message := cs.Err.Error()
			var loginErr *usecase.LoginError
			if errors.As(err, &loginErr) {
				message = loginErr.Message()
			}
			respondLoginFailure(c, cs.Status, cs.Kind, message)
			return
		}
	}
	respondLoginFailure(c, http.StatusInternalServerError, domain.LoginErrorInternal, usecase.ErrInternal.Error())
}

func respondLoginFailure(c *gin.Context, status int, kind domain.LoginErrorKind, message string) {
	c.JSON(status, LoginFailureResponse{
		Success:   false,
		ErrorKind: kind,
		Message:   message,
		TraceID:   middleware.GetTraceID(c),
	})
}
