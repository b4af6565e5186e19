package handler

import "church-admin-gateway/internal/domain"

// Section is one admin area of the UI.
type Section struct {
	Slug        string
	Title       string
	Constraints domain.Constraints
	// Restricted sections show a notice instead of redirecting when
	// access is refused.
	Restricted bool
}

func viewSection(slug, title string) Section {
	return Section{
		Slug:  slug,
		Title: title,
		Constraints: domain.Constraints{
			RequireAuth: true,
			Permissions: domain.NewNameSet("view-" + slug),
		},
	}
}

func adminSection(slug, title string, restricted bool) Section {
	return Section{
		Slug:  slug,
		Title: title,
		Constraints: domain.Constraints{
			RequireAuth: true,
			Roles:       domain.NewNameSet("admin", "super-admin"),
		},
		Restricted: restricted,
	}
}

// Sections lists the admin areas in navigation order.
func Sections() []Section {
	return []Section{
		viewSection("members", "Members"),
		viewSection("families", "Families"),
		viewSection("groups", "Groups"),
		viewSection("tithes", "Tithes"),
		viewSection("partnerships", "Partnerships"),
		viewSection("events", "Events"),
		viewSection("first-timers", "First Timers"),
		adminSection("backups", "Backups", false),
		adminSection("roles", "Roles", false),
		adminSection("audit-logs", "Audit Logs", true),
	}
}
