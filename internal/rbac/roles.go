package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"      // places calls, pulls from the queue
	RoleSupervisor = "supervisor" // manages queue priorities and agent seats
	RoleAdmin      = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
