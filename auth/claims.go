package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/neogql/neogql"
)

// Claims is the decoded payload of an authentication token.
type Claims map[string]any

// Context carries the per-request values consulted by "$jwt." and
// "$context." references. A nil Claims means the request is unauthenticated.
type Context struct {
	Claims Claims
	Values map[string]any
}

// Authenticated reports whether a claims object is present.
func (c *Context) Authenticated() bool {
	return c != nil && c.Claims != nil
}

const (
	jwtPrefix     = "$jwt."
	contextPrefix = "$context."
)

// IsRef reports whether v is a claim or context value reference.
func IsRef(v any) bool {
	s, ok := v.(string)
	return ok && (strings.HasPrefix(s, jwtPrefix) || strings.HasPrefix(s, contextPrefix))
}

// Pluck resolves a "$jwt.<path>" or "$context.<path>" reference against
// the context. It returns false when the path does not resolve, which
// callers treat as a failed comparison rather than an error.
func (c *Context) Pluck(ref string) (any, bool) {
	var (
		root map[string]any
		path string
	)
	switch {
	case strings.HasPrefix(ref, jwtPrefix):
		if c == nil || c.Claims == nil {
			return nil, false
		}
		root, path = c.Claims, ref[len(jwtPrefix):]
	case strings.HasPrefix(ref, contextPrefix):
		if c == nil || c.Values == nil {
			return nil, false
		}
		root, path = c.Values, ref[len(contextPrefix):]
	default:
		return nil, false
	}
	return lookupPath(root, path)
}

// lookupPath walks a dot path into nested maps. A backslash escapes a dot
// inside a single segment, e.g. "myapp\.example\.com.roles".
func lookupPath(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, seg := range splitPath(path) {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	var (
		segs []string
		sb   strings.Builder
	)
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '\\':
			if i+1 < len(path) && path[i+1] == '.' {
				sb.WriteByte('.')
				i++
				continue
			}
			sb.WriteByte(c)
		case '.':
			segs = append(segs, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	return append(segs, sb.String())
}

// DefaultRolesPath is the claims path used when none is configured.
const DefaultRolesPath = "jwt.roles"

// roles reads the role list from the claims using the configured path.
// The path's leading "jwt" segment addresses the claims object itself.
func (c *Context) roles(path string) []string {
	if path == "" {
		path = DefaultRolesPath
	}
	if c == nil || c.Claims == nil {
		return nil
	}
	v, ok := lookupPath(map[string]any{"jwt": map[string]any(c.Claims)}, path)
	if !ok {
		return nil
	}
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		roles := make([]string, 0, len(vs))
		for _, r := range vs {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	}
	return nil
}

// AuthParam returns the value bound to the $auth statement parameter made
// available to @cypher statements: the authentication state, roles and raw
// claims of the request.
func (c *Context) AuthParam(rolesPath string) map[string]any {
	param := map[string]any{
		"isAuthenticated": c.Authenticated(),
		"roles":           c.roles(rolesPath),
	}
	if c.Authenticated() {
		param["jwt"] = map[string]any(c.Claims)
	}
	return param
}

// DecodeBearer decodes the token from an "authorization: Bearer <token>"
// header value into Claims. With cfg.NoVerify set the signature is not
// checked; otherwise the token must be HMAC-signed with cfg.Secret.
func DecodeBearer(header string, cfg neogql.JWTConfig) (Claims, error) {
	token := strings.TrimSpace(header)
	if rest, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = rest
	}
	if token == "" {
		return nil, fmt.Errorf("auth: empty bearer token")
	}
	claims := jwt.MapClaims{}
	if cfg.NoVerify {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("auth: decoding token: %w", err)
		}
		return Claims(claims), nil
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, fmt.Errorf("auth: verifying token: %w", err)
	}
	return Claims(claims), nil
}
