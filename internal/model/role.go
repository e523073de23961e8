package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role is the numeric account discriminator carried in tokens and
// notification addressing.
type Role int

const (
	RolePatient  Role = 300
	RoleProvider Role = 400
	RoleAdmin    Role = 500
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// UnmarshalJSON accepts the code as a number or a numeric string.
func (r *Role) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = Role(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a number: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("role must be a number: %w", err)
	}
	*r = Role(n)
	return nil
}

// EntityType selects one of the provider account kinds.
type EntityType string

const (
	EntityClinic     EntityType = "clinic"
	EntityPharmacy   EntityType = "pharmacy"
	EntityLaboratory EntityType = "lab"
)

var EntityTypes = []EntityType{EntityClinic, EntityPharmacy, EntityLaboratory}

func ParseEntityType(s string) (EntityType, bool) {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case EntityClinic:
		return EntityClinic, true
	case EntityPharmacy:
		return EntityPharmacy, true
	case EntityLaboratory, "laboratory":
		return EntityLaboratory, true
	}
	return "", false
}

// Title is the capitalised form used in user-facing messages.
func (e EntityType) Title() string {
	if e == "" {
		return ""
	}
	return strings.ToUpper(string(e[:1])) + string(e[1:])
}
