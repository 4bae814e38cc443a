package hub

import (
	"fmt"
	"strings"

	"github.com/edinai/classhub/internal/models"
)

// Room keys are derived, never stored. The same session fields must
// map to the same key at connect time and at every later event, so
// both derivations are pure functions of their inputs and
// case-normalized to survive inconsistent casing in roster data.

// PersonalRoom is the 1:1 mailbox for one identity within one tenant.
func PersonalRoom(tenantID int64, identity string) string {
	return strings.ToLower(fmt.Sprintf("student:%d:%s", tenantID, identity))
}

// ClassRoom is the broadcast group for a tenant + grade + section.
// A roster entry with no section falls into the "all" group.
func ClassRoom(ctx models.RosterContext) string {
	section := strings.TrimSpace(ctx.Section)
	if section == "" {
		section = "all"
	}
	return strings.ToLower(fmt.Sprintf("class:%d:%s:%s", ctx.TenantID, ctx.Grade, section))
}
