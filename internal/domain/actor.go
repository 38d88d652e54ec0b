package domain

// Role is the coarse permission class of a caller.
type Role string

const (
	RolePromoter   Role = "promoter"
	RoleAdmin      Role = "admin"
	RoleFinance    Role = "finance"
	RoleSuperAdmin Role = "super_admin"
)

// Actor is the authenticated caller of a core operation. It is passed
// explicitly into every call that needs an authorization decision.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the actor may review commissions and withdrawals.
func (a Actor) IsAdmin() bool {
	switch a.Role {
	case RoleAdmin, RoleFinance, RoleSuperAdmin:
		return true
	}
	return false
}

// Owns reports whether the actor is the promoter who owns a wallet.
func (a Actor) Owns(promoterID string) bool {
	return a.ID != "" && a.ID == promoterID
}

// Anonymous reports whether no identity was established.
func (a Actor) Anonymous() bool { return a.ID == "" }
