package auth

// Roles: facilitators upload and scan boards; admins can inspect
// failed scans.
const (
	RoleFacilitator = "FACILITATOR"
	RoleAdmin       = "ADMIN"
)

// User is the domain entity.
type User struct {
	ID       string
	Name     string
	Email    string
	Password string
	Role     string
}
