package auth

import "testing"

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"super-admin", RoleSuperAdmin, true},
		{"admin", RoleAdmin, true},
		{"mentor", RoleMentor, true},
		{"participant", RoleParticipant, true},
		{"  Admin  ", RoleAdmin, true},
		{"PARTICIPANT", RoleParticipant, true},
		{"yep-manager", "", false},
		{"user", "", false},
		{"viewer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeLegacyRole(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"yep-manager", RoleAdmin, true},
		{"user", RoleParticipant, true},
		{"USER", RoleParticipant, true},
		{"mentor", RoleMentor, true},
		{"super-admin", RoleSuperAdmin, true},
		{"owner", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeLegacyRole(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Errorf("NormalizeLegacyRole(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPrincipalRoleClasses(t *testing.T) {
	super := Principal{Role: RoleSuperAdmin}
	admin := Principal{Role: RoleAdmin}
	mentor := Principal{Role: RoleMentor}
	participant := Principal{Role: RoleParticipant}

	if !super.IsSuperAdmin() || admin.IsSuperAdmin() {
		t.Fatal("IsSuperAdmin mismatch")
	}
	if !super.IsAdminLevel() || !admin.IsAdminLevel() {
		t.Fatal("IsAdminLevel should cover super-admin and admin")
	}
	if mentor.IsAdminLevel() || participant.IsAdminLevel() {
		t.Fatal("program roles must not be admin level")
	}
	if !mentor.IsProgramRole() || !participant.IsProgramRole() {
		t.Fatal("IsProgramRole should cover mentor and participant")
	}
	if super.IsProgramRole() || admin.IsProgramRole() {
		t.Fatal("staff roles must not be program roles")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.ORG "); got != "alice@example.org" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := ComparePassword("correct horse battery staple", hash)
	if err != nil || !ok {
		t.Fatalf("ComparePassword ok=%v err=%v", ok, err)
	}
	ok, err = ComparePassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("ComparePassword for wrong password ok=%v err=%v", ok, err)
	}
}
