// Package actor は操作主体とその権限集合を表します。認証は行いません。
package actor

import "strings"

// Role は操作主体が持つ権限です。
type Role string

const (
	RoleEmployee   Role = "EMPLOYEE"
	RoleSupervisor Role = "SUPERVISOR"
	RoleHR         Role = "HR"
	RoleCEO        Role = "CEO"
)

// Actor は操作を要求した主体です。
type Actor struct {
	ID         string
	EmployeeID string
	Roles      []Role
}

// ParseRole は文字列を Role に変換します。
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleEmployee:
		return RoleEmployee, true
	case RoleSupervisor:
		return RoleSupervisor, true
	case RoleHR:
		return RoleHR, true
	case RoleCEO:
		return RoleCEO, true
	default:
		return "", false
	}
}

// Has は role を保持しているかを返します。
func (a Actor) Has(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny は roles のいずれかを保持しているかを返します。
func (a Actor) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if a.Has(role) {
			return true
		}
	}
	return false
}

// IsEmployee は主体が employeeID の社員本人かを返します。
func (a Actor) IsEmployee(employeeID string) bool {
	return a.EmployeeID != "" && a.EmployeeID == employeeID
}
