package authz

import (
	"net/url"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
)

// Decision is the outcome kind of one authorization check.
type Decision int

const (
	// DecisionIndeterminate means the session is still being restored.
	// Callers must render a non-committal state and must not navigate.
	DecisionIndeterminate Decision = iota
	// DecisionAllow grants access.
	DecisionAllow
	// DecisionDeny refuses access and carries a reason and a redirect.
	DecisionDeny
)

// Reason categorizes a denial.
type Reason string

const (
	ReasonNotAuthenticated  Reason = "not_authenticated"
	ReasonInsufficientLevel Reason = "insufficient_level"
	ReasonExcessLevel       Reason = "excess_level"
	ReasonWrongProfileType  Reason = "wrong_profile_type"
	ReasonRoleNotPermitted  Reason = "role_not_permitted"
)

// Verdict is the immutable output of one authorization check. It is
// recomputed fresh on every check and never mutated after creation.
type Verdict struct {
	Decision   Decision
	Reason     Reason
	RedirectTo string
}

// Allowed reports whether the verdict grants access.
func (v Verdict) Allowed() bool { return v.Decision == DecisionAllow }

// Denied reports whether the verdict refuses access.
func (v Verdict) Denied() bool { return v.Decision == DecisionDeny }

// Indeterminate reports whether no final decision could be made yet.
func (v Verdict) Indeterminate() bool { return v.Decision == DecisionIndeterminate }

var (
	allowVerdict         = Verdict{Decision: DecisionAllow}
	indeterminateVerdict = Verdict{Decision: DecisionIndeterminate}
)

func deny(reason Reason, redirectTo string) Verdict {
	return Verdict{Decision: DecisionDeny, Reason: reason, RedirectTo: redirectTo}
}

// LoginRedirect builds the canonical login entry URL carrying the
// original path as a "next" query parameter so the login flow can return
// the user afterward.
func LoginRedirect(path string) string {
	if path == "" || path == LoginPath {
		return LoginPath
	}
	q := url.Values{}
	q.Set("next", path)
	return LoginPath + "?" + q.Encode()
}

// DefaultZone is the single resolver for "the user's own home". Every
// denial of an authenticated user redirects here, never to the login
// page. Anonymous callers get the bare login entry.
func DefaultZone(profile *domainauth.Profile) string {
	switch {
	case profile == nil:
		return LoginPath
	case profile.RoleLevel >= domainauth.LevelAdmin:
		return AdminHome
	case profile.RoleLevel >= domainauth.LevelStaff:
		return StaffDashboard
	default:
		return StudentHome
	}
}

// Evaluate computes the authorization verdict for a path. It is a pure
// function of its three inputs: no clock, no randomness, no hidden
// state. Calling it twice with identical inputs yields identical
// verdicts.
func Evaluate(path string, profile *domainauth.Profile, loading bool) Verdict {
	// A guard must never commit to a redirect while the session is
	// still restoring; a fast deny firing before a slow restore
	// completes would bounce an authenticated user to login.
	if loading {
		return indeterminateVerdict
	}

	class := Classify(path)
	if class == ClassPublic {
		return allowVerdict
	}

	if profile == nil {
		return deny(ReasonNotAuthenticated, LoginRedirect(path))
	}

	if profile.RoleLevel == domainauth.LevelStudent {
		return evaluateStudent(path, class)
	}
	return evaluateStaff(path, class, profile)
}

// evaluateStudent handles role level 0. Students are redirected to their
// own home on every denial: they are authenticated, so the login page is
// never a valid target.
func evaluateStudent(path string, class AccessClass) Verdict {
	if class >= ClassStaff {
		return deny(ReasonWrongProfileType, StudentHome)
	}
	if StudentAllowed(path) {
		return allowVerdict
	}
	return deny(ReasonInsufficientLevel, StudentHome)
}

// evaluateStaff handles role levels >= 1.
func evaluateStaff(path string, class AccessClass, profile *domainauth.Profile) Verdict {
	level := profile.RoleLevel
	switch {
	case class == ClassAdmin && level < domainauth.LevelAdmin:
		return deny(ReasonInsufficientLevel, StaffDashboard)
	case class == ClassDevAdmin && level < domainauth.LevelAdminDev:
		target := StaffDashboard
		if level == domainauth.LevelAdmin {
			target = AdminHome
		}
		return deny(ReasonInsufficientLevel, target)
	}
	// The login entry is already satisfied for an authenticated staff
	// profile: allow it rather than bouncing into a redirect loop.
	// (It is public, so this arm is unreachable via Evaluate; kept for
	// callers that classify the login entry themselves.)
	if path == LoginPath {
		return allowVerdict
	}
	// Staff zone or auth-required with sufficient level.
	return allowVerdict
}

// EvaluateLevelRange is the narrow check behind the role-level guard:
// the caller already knows the required level band for a UI fragment or
// handler group. max < 0 means no upper cap. A profile strictly above a
// cap is denied with excess_level (P2's only sanctioned exception to
// monotonicity).
func EvaluateLevelRange(profile *domainauth.Profile, loading bool, minLevel, maxLevel int) Verdict {
	if loading {
		return indeterminateVerdict
	}
	if profile == nil {
		return deny(ReasonNotAuthenticated, LoginPath)
	}
	if profile.RoleLevel < minLevel {
		return deny(ReasonInsufficientLevel, DefaultZone(profile))
	}
	if maxLevel >= 0 && profile.RoleLevel > maxLevel {
		return deny(ReasonExcessLevel, DefaultZone(profile))
	}
	return allowVerdict
}

// EvaluateRoles is the check behind the role-set guard: an explicit set
// of acceptable role codes for narrow staff-only features.
func EvaluateRoles(profile *domainauth.Profile, loading bool, roles ...domainauth.Role) Verdict {
	if loading {
		return indeterminateVerdict
	}
	if profile == nil {
		return deny(ReasonNotAuthenticated, LoginPath)
	}
	current := profile.StaffRole
	if current == "" {
		current = domainauth.RoleStudent
	}
	for _, r := range roles {
		if r == current {
			return allowVerdict
		}
	}
	return deny(ReasonRoleNotPermitted, DefaultZone(profile))
}

// EvaluateEdge is the reduced decision applied before any handler runs,
// using only the signed edge token's claims. It must stay a conservative
// subset of Evaluate: allowing a request the session-backed guard later
// denies is acceptable (the guard has fresher profile data), but every
// zone classified staff or above is enforced here too so protected
// content never leaks on a stale or missing token. There is no loading
// state at the edge: a token is either decodable or the request is
// anonymous.
func EvaluateEdge(path string, roleLevel int, authenticated bool) Verdict {
	class := Classify(path)
	if class < ClassStaff {
		return allowVerdict
	}
	if !authenticated {
		return deny(ReasonNotAuthenticated, LoginRedirect(path))
	}
	if roleLevel == domainauth.LevelStudent {
		return deny(ReasonWrongProfileType, StudentHome)
	}
	if roleLevel < class.MinLevel() {
		target := StaffDashboard
		if class == ClassDevAdmin && roleLevel == domainauth.LevelAdmin {
			target = AdminHome
		}
		return deny(ReasonInsufficientLevel, target)
	}
	return allowVerdict
}
