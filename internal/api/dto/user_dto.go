package dto

import (
	"github.com/spec-kit/profile-service/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserUpdateRequest is a partial profile update; omitted fields stay unchanged.
type UserUpdateRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// ToProfileUpdate maps the payload to the domain update.
func (r UserUpdateRequest) ToProfileUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{Name: r.Name, Password: r.Password}
}

// UserResponse is the public profile view.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewUserResponse projects a stored user.
func NewUserResponse(u *domain.User) UserResponse {
	pub := u.Public()
	return UserResponse{ID: pub.ID, Email: pub.Email, Name: pub.Name}
}

// DataResponse wraps successful payloads.
type DataResponse[T any] struct {
	Data T `json:"data"`
}
