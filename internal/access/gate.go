// Package access decides whether a verified identity may perform an
// operation on the reservation core. It holds no state and performs no I/O.
package access

import "github.com/spec-kit/table-reservation/internal/domain"

// Operation names an entry point of the reservation service.
type Operation string

const (
	OpCreate      Operation = "create"
	OpGet         Operation = "get"
	OpCancel      Operation = "cancel"
	OpListOwn     Operation = "listOwn"
	OpListAll     Operation = "listAll"
	OpAdminUpdate Operation = "adminUpdate"
	OpAdminDelete Operation = "adminDelete"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool { return d == Allow }

// Authorize maps identity, operation and the owner of the target reservation
// (empty when the operation has no target) to a decision.
func Authorize(identity domain.Identity, op Operation, targetOwnerID string) Decision {
	if identity.SubjectID == "" || !identity.Role.Valid() {
		return Deny
	}
	if identity.IsAdmin() {
		return Allow
	}

	switch op {
	case OpCreate, OpListOwn:
		return Allow
	case OpCancel, OpGet:
		if targetOwnerID != "" && targetOwnerID == identity.SubjectID {
			return Allow
		}
		return Deny
	default:
		return Deny
	}
}
