// Package domain holds the platform's core vocabulary: roles, project and
// milestone lifecycles, and the escrow arithmetic the ledger enforces.
package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleInvestor Role = "INVESTOR"
	RoleIssuer   Role = "ISSUER"
	RoleAdmin    Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleInvestor:
		return RoleInvestor, nil
	case RoleIssuer:
		return RoleIssuer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
