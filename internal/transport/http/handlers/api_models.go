package handlers

import (
	"time"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Alias  string `json:"alias"`
	Secret string `json:"secret"`
}

// AccountPayload is the credential-free account returned on success.
type AccountPayload struct {
	ID         int64                `json:"id"`
	Alias      string               `json:"alias"`
	Status     domain.AccountStatus `json:"status"`
	BusinessID int64                `json:"business_id"`
	RoleID     int64                `json:"role_id"`
}

// AuthorizationPayload is the context the terminal needs after login.
type AuthorizationPayload struct {
	Alias      string `json:"alias"`
	BusinessID int64  `json:"business_id"`
	RoleID     int64  `json:"role_id"`
}

// LoginSuccessResponse is returned with 200 on a successful login.
type LoginSuccessResponse struct {
	Success       bool                 `json:"success"`
	Account       AccountPayload       `json:"account"`
	Authorization AuthorizationPayload `json:"authorization"`
}

// LoginFailureResponse is returned for every rejected login.
type LoginFailureResponse struct {
	Success   bool                  `json:"success"`
	ErrorKind domain.LoginErrorKind `json:"error_kind"`
	Message   string                `json:"message"`
	TraceID   string                `json:"trace_id,omitempty"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse reports readiness with per-dependency results.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newAccountPayload(view domain.AccountView) AccountPayload {
	return AccountPayload{
		ID:         view.ID,
		Alias:      view.Alias,
		Status:     view.Status,
		BusinessID: view.BusinessID,
		RoleID:     view.RoleID,
	}
}

func newAuthorizationPayload(auth domain.Authorization) AuthorizationPayload {
	return AuthorizationPayload{
		Alias:      auth.Alias,
		BusinessID: auth.BusinessID,
		RoleID:     auth.RoleID,
	}
}
