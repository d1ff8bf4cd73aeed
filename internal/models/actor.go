package models

// Actor is the authenticated identity behind a request. The identity
// provider resolves it before any core operation runs; the core trusts
// the id and role as given and never consults ambient session state.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"` // student, faculty, admin
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }
func (a Actor) IsFaculty() bool { return a.Role == RoleFaculty }
