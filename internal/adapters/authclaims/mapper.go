package authclaims

// Package authclaims maps raw backend profile payloads into the domain
// Profile shape. The backend's payload layout is configurable through
// JMESPath expressions so a backend reshuffle never forces a code change
// in the decision path.

import (
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// Config holds the JMESPath expressions for each profile field. Empty
// expressions fall back to the defaults, which match the backend's
// documented payload shape.
type Config struct {
	IDExpr        string
	EmailExpr     string
	RoleExpr      string
	RoleLevelExpr string
}

// Defaults for the backend's documented payload:
// {"id": ..., "email": ..., "staff_role": ..., "role_level": ...}.
const (
	defaultIDExpr        = "id"
	defaultEmailExpr     = "email"
	defaultRoleExpr      = "staff_role"
	defaultRoleLevelExpr = "role_level"
)

// Mapper implements ports.ClaimsMapper using compiled JMESPath
// expressions.
type Mapper struct {
	id        jmespath.JMESPath
	email     jmespath.JMESPath
	role      jmespath.JMESPath
	roleLevel jmespath.JMESPath
}

var _ ports.ClaimsMapper = (*Mapper)(nil)

// NewMapper compiles the configured expressions. Invalid expressions are
// a configuration error and fail construction.
func NewMapper(cfg Config) (*Mapper, error) {
	m := &Mapper{}
	for _, f := range []struct {
		dst  *jmespath.JMESPath
		expr string
		def  string
		name string
	}{
		{&m.id, cfg.IDExpr, defaultIDExpr, "id"},
		{&m.email, cfg.EmailExpr, defaultEmailExpr, "email"},
		{&m.role, cfg.RoleExpr, defaultRoleExpr, "role"},
		{&m.roleLevel, cfg.RoleLevelExpr, defaultRoleLevelExpr, "role level"},
	} {
		expr := strings.TrimSpace(f.expr)
		if expr == "" {
			expr = f.def
		}
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("authclaims: compile %s expression %q: %w", f.name, expr, err)
		}
		*f.dst = compiled
	}
	return m, nil
}

// Map extracts a Profile from a raw payload. The role level is derived
// from the role-level field when present, otherwise from the role code;
// either way the result is normalized so the staffRole/roleLevel
// agreement invariant holds.
func (m *Mapper) Map(payload map[string]any) (domainauth.Profile, error) {
	if payload == nil {
		return domainauth.Profile{}, errors.New("authclaims: payload is required")
	}

	p := domainauth.Profile{
		ID:    m.stringField(payload, m.id),
		Email: m.stringField(payload, m.email),
	}
	if p.ID == "" {
		return domainauth.Profile{}, errors.New("authclaims: payload has no principal id")
	}

	if level, ok := m.intField(payload, m.roleLevel); ok {
		p.RoleLevel = level
	} else {
		p.RoleLevel = domainauth.LevelOf(domainauth.Role(m.stringField(payload, m.role)))
	}

	p.Normalize()
	return p, nil
}

func (m *Mapper) stringField(payload map[string]any, expr jmespath.JMESPath) string {
	v, err := expr.Search(payload)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (m *Mapper) intField(payload map[string]any, expr jmespath.JMESPath) (int, bool) {
	v, err := expr.Search(payload)
	if err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
