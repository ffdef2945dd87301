package domain

// Role is the authorization role carried by a verified identity.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is one the service knows about.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the verified caller of a single request. It is produced by the
// identity verifier and trusted for the lifetime of that request.
type Identity struct {
	SubjectID string
	Role      Role
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
