package core

import (
	"fmt"
	"strings"
)

// Role identifies the kind of actor issuing a request. It constrains which
// records are visible and how summaries are phrased.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
)

// ParseRole normalizes a role string.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RolePatient):
		return RolePatient, nil
	case string(RoleDoctor):
		return RoleDoctor, nil
	default:
		return "", fmt.Errorf("unknown actor role %q", s)
	}
}

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   string
	Role Role
}

// CanAccess reports whether the actor may read the given subject's data.
// Patients may only read their own records; doctors are scoped by the
// record store itself (MANAGES/TREATS relationships).
func (a Actor) CanAccess(subjectID string) bool {
	if a.Role == RolePatient {
		return a.ID == subjectID
	}
	return true
}
