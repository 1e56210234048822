package authz

// Package authz implements the route classification table and the access
// decision engine. It is the single place where route authorization
// rules live: guards and the edge layer are thin callers and must never
// re-encode the rules locally.

import "strings"

// AccessClass is the access requirement of a route group.
type AccessClass int

const (
	// ClassPublic routes are usable with no session.
	ClassPublic AccessClass = iota
	// ClassAuth routes need any authenticated profile regardless of level.
	ClassAuth
	// ClassStaff routes need role level >= 1.
	ClassStaff
	// ClassAdmin routes need role level >= 2.
	ClassAdmin
	// ClassDevAdmin routes need role level >= 3.
	ClassDevAdmin
)

// String returns the lowercase name of the access class.
func (c AccessClass) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassAuth:
		return "auth"
	case ClassStaff:
		return "staff"
	case ClassAdmin:
		return "admin"
	case ClassDevAdmin:
		return "devadmin"
	default:
		return "unknown"
	}
}

// MinLevel returns the minimum role level the class requires.
// Public and Auth impose no level requirement beyond authentication.
func (c AccessClass) MinLevel() int {
	switch c {
	case ClassStaff:
		return 1
	case ClassAdmin:
		return 2
	case ClassDevAdmin:
		return 3
	default:
		return 0
	}
}

// Canonical navigation targets. The login entry doubles as the public
// registration page; the remaining three are the per-tier home zones the
// redirect resolver points denied users at.
const (
	LoginPath      = "/inscripcion"
	StudentHome    = "/mi-cuenta"
	StaffDashboard = "/dashboard"
	AdminHome      = "/admin"
)

// RouteEntry is one static record of the classification table.
type RouteEntry struct {
	Prefix string
	Class  AccessClass
}

// routeTable is the fixed classification table. Entries never overlap
// ambiguously: where two prefixes match the same path, the longer (more
// specific) prefix decides, and Classify breaks exact-length ties toward
// the more restrictive class. The table is ordered for readability only.
var routeTable = []RouteEntry{
	// Public marketing and listing pages.
	{Prefix: "/", Class: ClassPublic},
	{Prefix: LoginPath, Class: ClassPublic},
	{Prefix: "/faq", Class: ClassPublic},
	{Prefix: "/actividades", Class: ClassPublic},
	{Prefix: "/agenda", Class: ClassPublic},
	{Prefix: "/ganadores", Class: ClassPublic},
	{Prefix: "/podio", Class: ClassPublic},

	// Any authenticated profile.
	{Prefix: StudentHome, Class: ClassAuth},
	{Prefix: "/portal", Class: ClassAuth},
	{Prefix: "/inscripcion/completar", Class: ClassAuth},

	// Staff hierarchy zones. Admin and dev-admin zones are nested
	// subsets of the staff zone.
	{Prefix: StaffDashboard, Class: ClassStaff},
	{Prefix: "/staff", Class: ClassStaff},
	{Prefix: AdminHome, Class: ClassStaff},
	{Prefix: "/admin/usuarios", Class: ClassAdmin},
	{Prefix: "/admin/configuracion", Class: ClassAdmin},
	{Prefix: "/admin/dev", Class: ClassDevAdmin},
}

// studentAllowList is the explicit set of path prefixes reachable by
// role level 0. Membership is checked by prefix match, so paths nested
// under an allow-listed prefix (activity detail pages, agenda days) are
// reachable too. Staff zone prefixes must never appear here.
var studentAllowList = []string{
	"/",
	LoginPath,
	StudentHome,
	"/faq",
	"/actividades",
	"/agenda",
	"/ganadores",
	"/podio",
}

// matchesPrefix reports whether path matches prefix under the table's
// matching rule: exact equality or a nested path under prefix. The root
// prefix matches only the root path so it never swallows the whole tree.
func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Classify returns the access class of a path. The most specific
// (longest-prefix) entry wins; on equal length the more restrictive
// class wins. Paths no entry covers default to ClassAuth: unknown
// territory fails toward requiring authentication, never toward open
// access.
func Classify(path string) AccessClass {
	bestLen := -1
	best := ClassAuth
	matched := false
	for _, e := range routeTable {
		if !matchesPrefix(path, e.Prefix) {
			continue
		}
		switch {
		case len(e.Prefix) > bestLen:
			bestLen = len(e.Prefix)
			best = e.Class
			matched = true
		case len(e.Prefix) == bestLen && e.Class > best:
			best = e.Class
		}
	}
	if !matched {
		return ClassAuth
	}
	return best
}

// StudentAllowed reports whether a path is on the explicit allow-list
// for role level 0.
func StudentAllowed(path string) bool {
	for _, prefix := range studentAllowList {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}
