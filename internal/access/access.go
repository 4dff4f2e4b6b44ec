package access

// #region imports
import (
	"fmt"
	"strings"
)

// #endregion

// #region role

// Role identifies who is asking. Parsed once at the request boundary;
// everything downstream works with the enum, never the raw string.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RolePatient      Role = "patient"
	RoleReceptionist Role = "receptionist"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDoctor, RoleNurse, RolePatient, RoleReceptionist}
}

// ParseRole maps a raw string to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDoctor:
		return RoleDoctor, nil
	case RoleNurse:
		return RoleNurse, nil
	case RolePatient:
		return RolePatient, nil
	case RoleReceptionist:
		return RoleReceptionist, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// #endregion

// #region access-level

// Level is the clearance a knowledge chunk requires.
type Level string

const (
	LevelAdmin   Level = "admin"
	LevelDoctor  Level = "doctor"
	LevelNurse   Level = "nurse"
	LevelPatient Level = "patient"
	LevelPublic  Level = "public"
)

// #endregion

// #region visibility

// visibility maps each role to the access levels it may read.
// Strictly nested: every lower role sees a narrower subset ending at public.
var visibility = map[Role][]Level{
	RoleAdmin:        {LevelAdmin, LevelDoctor, LevelNurse, LevelPatient, LevelPublic},
	RoleDoctor:       {LevelDoctor, LevelNurse, LevelPatient, LevelPublic},
	RoleNurse:        {LevelNurse, LevelPatient, LevelPublic},
	RolePatient:      {LevelPatient, LevelPublic},
	RoleReceptionist: {LevelPublic},
}

// VisibilityFor returns the access-level whitelist for a role.
// Unknown roles fail closed to public only.
func VisibilityFor(role Role) []Level {
	levels, ok := visibility[role]
	if !ok {
		return []Level{LevelPublic}
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// ValidateVisibility confirms every role has a mapping and every mapping
// ends at public. Call once at startup; a failure here is a build defect,
// not a runtime condition.
func ValidateVisibility() error {
	for _, r := range Roles() {
		levels, ok := visibility[r]
		if !ok {
			return fmt.Errorf("role %s has no visibility mapping", r)
		}
		if len(levels) == 0 || levels[len(levels)-1] != LevelPublic {
			return fmt.Errorf("role %s visibility does not end at public", r)
		}
	}
	return nil
}

// #endregion
