package models

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleUser  UserRole = "U"
)

func (r UserRole) Display() string {
	if r == UserRoleAdmin {
		return "Admin"
	}
	return "User"
}
