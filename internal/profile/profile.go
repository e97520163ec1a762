package profile

import "time"

// Makers perform and send booking requests; goers host and receive them.
const (
	RoleMaker = "maker"
	RoleGoer  = "goer"
)

// ValidRole reports whether role is one the profiles table accepts.
// Empty means the default, maker.
func ValidRole(role string) bool {
	return role == "" || role == RoleMaker || role == RoleGoer
}

type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}
