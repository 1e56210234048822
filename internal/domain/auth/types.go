package auth

// Package auth contains domain-level types for authentication, roles,
// and sessions. It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Role represents an application's authorization role code.
// Keep string form for easy persistence, cookies, and token claims.
// Valid values are defined as constants below.
type Role string

const (
	RoleStudent   Role = "student"
	RoleAsistente Role = "Asistente"
	RoleAdmin     Role = "Admin"
	RoleAdminDev  Role = "AdminDev"
)

// Role levels form a total order: every capability of a lower level is
// implied by a higher one. There are no orthogonal permissions.
const (
	LevelStudent  = 0
	LevelStaff    = 1
	LevelAdmin    = 2
	LevelAdminDev = 3
)

// LevelOf maps a role code to its numeric level.
// Unknown codes map to the student level.
func LevelOf(r Role) int {
	switch r {
	case RoleAsistente:
		return LevelStaff
	case RoleAdmin:
		return LevelAdmin
	case RoleAdminDev:
		return LevelAdminDev
	case RoleStudent:
		return LevelStudent
	default:
		return LevelStudent
	}
}

// RoleForLevel returns the canonical role code for a numeric level.
// Levels outside 0-3 map to the student role.
func RoleForLevel(level int) Role {
	switch level {
	case LevelStaff:
		return RoleAsistente
	case LevelAdmin:
		return RoleAdmin
	case LevelAdminDev:
		return RoleAdminDev
	default:
		return RoleStudent
	}
}

// Describe returns a human label for a numeric level.
func Describe(level int) string {
	switch level {
	case LevelStaff:
		return "staff"
	case LevelAdmin:
		return "admin"
	case LevelAdminDev:
		return "dev admin"
	case LevelStudent:
		return "student"
	default:
		return "none"
	}
}

// ProfileType distinguishes staff principals from student principals.
// It is orthogonal to the role level and is used only to route students
// away from staff zones and vice versa, never to grant capabilities.
type ProfileType string

const (
	ProfileStaff   ProfileType = "staff"
	ProfileStudent ProfileType = "student"
)

// Profile represents the authenticated principal for the duration of a
// session. RoleLevel is authoritative for all authorization decisions.
type Profile struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	ProfileType     ProfileType `json:"profile_type"`
	StaffRole       Role        `json:"staff_role,omitempty"`
	RoleLevel       int         `json:"role_level"`
	IsInstitutional bool        `json:"is_institutional"`
}

// Normalize enforces the internal agreement invariants:
// a staff profile always has RoleLevel >= 1 and StaffRole matching it;
// a student profile has level 0 and no staff role. The role level wins
// when the two disagree, because it is the authorization-authoritative
// field.
func (p *Profile) Normalize() {
	if p.RoleLevel < LevelStudent || p.RoleLevel > LevelAdminDev {
		p.RoleLevel = LevelStudent
	}
	if p.RoleLevel >= LevelStaff {
		p.ProfileType = ProfileStaff
		p.StaffRole = RoleForLevel(p.RoleLevel)
	} else {
		p.ProfileType = ProfileStudent
		p.StaffRole = ""
	}
	p.IsInstitutional = IsInstitutionalEmail(p.Email)
}

// IsStaff reports whether the profile belongs to the staff hierarchy.
func (p Profile) IsStaff() bool { return p.RoleLevel >= LevelStaff }

// institutionalDomains is the allow-list of university mail domains.
// Membership drives the display-only IsInstitutional flag.
var institutionalDomains = map[string]bool{
	"umg.edu.gt":   true,
	"miumg.edu.gt": true,
}

// IsInstitutionalEmail reports whether the email's registrable domain is
// on the institutional allow-list. Subdomains of an allowed domain count
// (e.g. portal.miumg.edu.gt). The flag is informational only and must
// never feed an authorization decision.
func IsInstitutionalEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	host := strings.ToLower(email[at+1:])
	if institutionalDomains[host] {
		return true
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	// umg.edu.gt is itself registrable under .edu.gt, so subdomains
	// normalize back to an allow-list entry.
	return institutionalDomains[registrable]
}

// Session is the server-side record persisted for an authenticated user.
// ID is an opaque session identifier. BackendToken is the credential the
// remote auth backend issued at login; it is re-confirmed on a fixed
// interval and never exposed to the browser.
type Session struct {
	ID           string    `json:"id"`
	Profile      Profile   `json:"profile"`
	BackendToken string    `json:"backend_token"`
	IssuedAt     time.Time `json:"issued_at"`
	VerifiedAt   time.Time `json:"verified_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// StaleAfter reports whether the session's last backend confirmation is
// older than the given interval.
func (s Session) StaleAfter(interval time.Duration, now time.Time) bool {
	return now.Sub(s.VerifiedAt) > interval
}
