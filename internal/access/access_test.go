package access

import "testing"

func TestParseRole(t *testing.T) {
	r, err := ParseRole("  Doctor ")
	if err != nil {
		t.Fatalf("ParseRole: %v", err)
	}
	if r != RoleDoctor {
		t.Fatalf("expected doctor, got %s", r)
	}

	if _, err := ParseRole("superuser"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestVisibilityNested(t *testing.T) {
	// Each role down the hierarchy sees a strict subset of the one above.
	order := []Role{RoleAdmin, RoleDoctor, RoleNurse, RolePatient, RoleReceptionist}
	prev := VisibilityFor(order[0])
	for _, role := range order[1:] {
		cur := VisibilityFor(role)
		if len(cur) >= len(prev) {
			t.Fatalf("%s sees %d levels, expected fewer than %d", role, len(cur), len(prev))
		}
		set := make(map[Level]bool, len(prev))
		for _, l := range prev {
			set[l] = true
		}
		for _, l := range cur {
			if !set[l] {
				t.Fatalf("%s sees %s which its superior role cannot", role, l)
			}
		}
		prev = cur
	}
}

func TestVisibilityFailsClosed(t *testing.T) {
	levels := VisibilityFor(Role("intern"))
	if len(levels) != 1 || levels[0] != LevelPublic {
		t.Fatalf("unknown role should see public only, got %v", levels)
	}
}

func TestValidateVisibility(t *testing.T) {
	if err := ValidateVisibility(); err != nil {
		t.Fatalf("ValidateVisibility: %v", err)
	}
}
