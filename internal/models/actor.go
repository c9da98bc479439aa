package models

// ActorRole represents the roles that can act on the recognition workflow.
type ActorRole string

const (
	RoleOwner   ActorRole = "OWNER"
	RoleAdviser ActorRole = "ADVISER"
	RoleOffice  ActorRole = "OFFICE"
	RoleAdmin   ActorRole = "ADMIN"
)

// Valid reports whether the role is known.
func (r ActorRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdviser, RoleOffice, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor identifies who performs a mutating operation. It is always passed explicitly.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
