package profile

import "testing"

func TestValidRole(t *testing.T) {
	for _, role := range []string{"", RoleMaker, RoleGoer} {
		if !ValidRole(role) {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"artist", "Maker", "admin"} {
		if ValidRole(role) {
			t.Fatalf("expected %q to be rejected", role)
		}
	}
}
