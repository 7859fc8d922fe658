package domain

import "time"

// Role enumerates what a user may do in the support desk.
type Role string

const (
	RoleEmployee  Role = "EMPLOYEE"
	RoleITSupport Role = "IT_SUPPORT"
)

var (
	roleRank = map[Role]int{
		RoleEmployee:  1,
		RoleITSupport: 2,
	}
	roles = enumSet(RoleEmployee, RoleITSupport)
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && roleRank[r] >= roleRank[min]
}

// ParseRole converts user input into a Role.
func ParseRole(raw string) (Role, bool) {
	return lookupEnum(roles, raw)
}

// User is an identity allowed to call the service.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	Role         Role
	CreatedAt    time.Time
}

// UserView is the client-facing projection of a user.
type UserView struct {
	ID       int64
	Username string
	FullName string
	Role     Role
}

// View projects the user without its credential.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}
