package domain

import "time"

// User is the domain model for chat participants.
type User struct {
	ID            string
	FullName      string
	Email         string
	PasswordHash  string
	Bio           string
	ProfilePicURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the projection of a User safe to return to clients.
// Field names follow the wire format the frontend expects.
type PublicUser struct {
	ID            string    `json:"_id"`
	FullName      string    `json:"fullName"`
	Email         string    `json:"email"`
	Bio           string    `json:"bio"`
	ProfilePicURL string    `json:"profilePic,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public strips the password hash and internal-only fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		FullName:      u.FullName,
		Email:         u.Email,
		Bio:           u.Bio,
		ProfilePicURL: u.ProfilePicURL,
		CreatedAt:     u.CreatedAt,
	}
}
