package model

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Actor is the verified identity handed over by the authentication layer.
type Actor struct {
	UserID           string
	Role             Role
	ManagedCanteenID *uint
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStaff is true for canteen managers and admins.
func (a Actor) IsStaff() bool { return a.Role == RoleManager || a.Role == RoleAdmin }

// ScopeCanteenID is the canteen a staff member is restricted to; nil means unrestricted.
func (a Actor) ScopeCanteenID() *uint {
	if a.Role == RoleManager {
		return a.ManagedCanteenID
	}
	return nil
}

// Owns is true only for the user who placed the order. Role and managed canteen play no part.
func (a Actor) Owns(o *Order) bool {
	return a.UserID != "" && o.UserID == a.UserID
}

// CanAccess reports whether the actor may see or act on the order:
// the owner, a manager of its canteen, or an admin.
func (a Actor) CanAccess(o *Order) bool {
	switch {
	case a.IsAdmin():
		return true
	case a.Role == RoleManager:
		return a.ManagedCanteenID != nil && *a.ManagedCanteenID == o.CanteenID
	default:
		return o.UserID == a.UserID
	}
}
