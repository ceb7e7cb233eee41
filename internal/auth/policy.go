package auth

import (
	"net/http"
	"strings"
)

// Rule grants access to requests whose path matches Path (or starts with it
// when Prefix is set). An empty Method matches every method.
type Rule struct {
	Method string
	Path   string
	Prefix bool
	Role   Role
}

func (r Rule) matches(req *http.Request) bool {
	if r.Method != "" && r.Method != req.Method {
		return false
	}
	if r.Prefix {
		return strings.HasPrefix(req.URL.Path, r.Path)
	}
	return req.URL.Path == r.Path
}

// DefaultRules covers the ETL API. The first matching rule wins.
var DefaultRules = []Rule{
	{Path: "/api/v1/backfill", Role: RoleAdmin},
	{Method: http.MethodPost, Path: "/api/v1/runs", Role: RoleOperator},
	{Path: "/api/v1/records", Role: RoleViewer},
	{Method: http.MethodGet, Path: "/api/v1/exports/", Prefix: true, Role: RoleViewer},
}

// Policy determines required roles by request.
type Policy struct {
	Rules  []Rule
	exempt []Rule
}

// NewDefaultPolicy builds a policy over DefaultRules. Requests matching an
// exempt path or prefix skip auth entirely.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	exempt := make([]Rule, 0, len(exemptPaths)+len(exemptPrefixes))
	for _, path := range exemptPaths {
		exempt = append(exempt, Rule{Path: path})
	}
	for _, prefix := range exemptPrefixes {
		exempt = append(exempt, Rule{Path: prefix, Prefix: true})
	}
	return Policy{Rules: DefaultRules, exempt: exempt}
}

// IsExempt reports whether the request skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	for _, rule := range p.exempt {
		if rule.matches(r) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the role required by the request. Unlisted /api/
// paths need viewer for reads and operator for writes; anything else is open.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range p.Rules {
		if rule.matches(r) {
			return rule.Role, true
		}
	}
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer, true
	}
	return RoleOperator, true
}
