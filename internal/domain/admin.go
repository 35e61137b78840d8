package domain

import "time"

// AdminInvite grants the invited e-mail address an admin account. Token is
// single use and valid until ExpiresAt (unix seconds).
type AdminInvite struct {
	InviteID  string    `json:"id" dynamodbav:"invite_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Role      string    `json:"role" dynamodbav:"role"`
	Token     string    `json:"token" dynamodbav:"token"`
	InvitedBy string    `json:"invited_by" dynamodbav:"invited_by"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"`
	Used      bool      `json:"used" dynamodbav:"used"`
	UsedBy    string    `json:"used_by,omitempty" dynamodbav:"used_by,omitempty"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Redeemable reports whether the invite can still complete a registration.
func (i *AdminInvite) Redeemable(now time.Time) bool {
	return !i.Used && i.ExpiresAt > now.Unix()
}

type CreateAdminInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type CompleteAdminRegistrationRequest struct {
	Token    string `json:"token" validate:"required"`
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name"`
}

type CreateSuperAdminRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	SecretKey string `json:"admin_secret_key" validate:"required"`
}
