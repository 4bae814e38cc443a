package hub

import (
	"testing"

	"github.com/edinai/classhub/internal/models"
)

func TestPersonalRoom(t *testing.T) {
	cases := []struct {
		name     string
		tenantID int64
		identity string
		want     string
	}{
		{"lowercases identity", 1, "EN-1042", "student:1:en-1042"},
		{"already lower", 7, "en-9", "student:7:en-9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PersonalRoom(tc.tenantID, tc.identity); got != tc.want {
				t.Errorf("PersonalRoom(%d, %q) = %q, want %q", tc.tenantID, tc.identity, got, tc.want)
			}
		})
	}
}

func TestClassRoom(t *testing.T) {
	cases := []struct {
		name string
		ctx  models.RosterContext
		want string
	}{
		{"with section", models.RosterContext{TenantID: 1, Grade: "5", Section: "A"}, "class:1:5:a"},
		{"empty section normalizes to all", models.RosterContext{TenantID: 1, Grade: "5"}, "class:1:5:all"},
		{"whitespace section normalizes to all", models.RosterContext{TenantID: 1, Grade: "5", Section: "  "}, "class:1:5:all"},
		{"mixed case grade", models.RosterContext{TenantID: 3, Grade: "X", Section: "b"}, "class:3:x:b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassRoom(tc.ctx); got != tc.want {
				t.Errorf("ClassRoom(%+v) = %q, want %q", tc.ctx, got, tc.want)
			}
		})
	}
}

// Identical inputs must yield identical keys no matter how often or in
// what order the router is consulted.
func TestRoomDerivationIsDeterministic(t *testing.T) {
	ctx := models.RosterContext{TenantID: 1, Grade: "5", Section: "A"}
	first := ClassRoom(ctx)
	for i := 0; i < 100; i++ {
		if got := ClassRoom(ctx); got != first {
			t.Fatalf("ClassRoom diverged on call %d: %q vs %q", i, got, first)
		}
	}
	if PersonalRoom(1, "S1") != PersonalRoom(1, "s1") {
		t.Error("PersonalRoom is not case-insensitive")
	}
}
