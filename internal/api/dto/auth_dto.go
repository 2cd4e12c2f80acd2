package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/presence-service/internal/domain"
)

// SignupRequest payload for account creation.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

// Validate applies field rules.
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Bio, validation.Required, validation.Length(1, 500)),
	)
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate applies field rules.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateProfileRequest payload for profile changes. ProfilePic, when present,
// is a base64 data URL.
type UpdateProfileRequest struct {
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

// Validate applies field rules.
func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(0, 200)),
		validation.Field(&r.Bio, validation.Length(0, 500)),
	)
}

// Envelope is the uniform response shape for auth endpoints.
type Envelope struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	User     *domain.PublicUser `json:"user,omitempty"`
	UserData *domain.PublicUser `json:"userData,omitempty"`
	Token    string             `json:"token,omitempty"`
}
