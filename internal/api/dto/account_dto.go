package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/spec-kit/account-service/internal/domain"
)

// CredentialsRequest is the payload for login and registration.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate requires both fields. Login skips this so that missing fields read
// as invalid credentials.
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// CreateAccountRequest is the admin payload for direct account creation.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Status   string `json:"status"`
	Role     string `json:"role"`
}

func (r CreateAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Status, validation.In(
			string(domain.AccountStatusPending),
			string(domain.AccountStatusApproved),
			string(domain.AccountStatusRevoked),
		)),
	)
}

// RevokeRequest carries the optional revocation reason.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	IsAdmin  bool   `json:"isAdmin"`
	Username string `json:"username"`
}

// AccountResponse wraps a newly created account.
type AccountResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	User    domain.Account `json:"user"`
}

// MessageResponse acknowledges admin actions.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatsResponse reports account counts.
type StatsResponse struct {
	TotalUsers    int `json:"totalUsers"`
	PendingCount  int `json:"pendingCount"`
	ApprovedCount int `json:"approvedCount"`
	RevokedCount  int `json:"revokedCount"`
}

// NewStatsResponse maps domain stats to the wire shape.
func NewStatsResponse(s domain.Stats) StatsResponse {
	return StatsResponse{
		TotalUsers:    s.Total,
		PendingCount:  s.Pending,
		ApprovedCount: s.Approved,
		RevokedCount:  s.Revoked,
	}
}
