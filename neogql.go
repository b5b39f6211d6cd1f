// Package neogql translates GraphQL operations into single parameterized
// Cypher statements. A schema model is built once from an annotated SDL
// document, and every incoming read or mutation compiles into one statement
// plus a parameter map, with declarative authorization rules woven into the
// generated Cypher.
package neogql

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Op is the kind of operation being compiled. Operations are bit flags so
// that directive arguments like operations: ["create", "update"] can be
// folded into a single mask.
type Op uint8

const (
	OpRead Op = 1 << iota
	OpCreate
	OpUpdate
	OpDelete
	OpConnect
	OpDisconnect

	// OpAll matches every operation. Used by directives that accept "*".
	OpAll = OpRead | OpCreate | OpUpdate | OpDelete | OpConnect | OpDisconnect
)

var opNames = map[Op]string{
	OpRead:       "read",
	OpCreate:     "create",
	OpUpdate:     "update",
	OpDelete:     "delete",
	OpConnect:    "connect",
	OpDisconnect: "disconnect",
}

// String returns the lower-case name of the operation. Composite masks are
// rendered as a pipe-separated list.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if op == OpAll {
		return "*"
	}
	var parts []string
	for _, o := range []Op{OpRead, OpCreate, OpUpdate, OpDelete, OpConnect, OpDisconnect} {
		if op.Is(o) {
			parts = append(parts, opNames[o])
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Op(%d)", op)
	}
	return strings.Join(parts, "|")
}

// Is reports whether the operation mask contains o.
func (op Op) Is(o Op) bool { return op&o != 0 }

// ParseOp parses a single operation name as it appears in directive
// arguments. The wildcard "*" parses to OpAll.
func ParseOp(s string) (Op, error) {
	if s == "*" {
		return OpAll, nil
	}
	for op, name := range opNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("neogql: unknown operation %q", s)
}

// ParseOps folds a list of operation names into a single mask.
func ParseOps(names []string) (Op, error) {
	var mask Op
	for _, name := range names {
		op, err := ParseOp(name)
		if err != nil {
			return 0, err
		}
		mask |= op
	}
	return mask, nil
}

// Statement is the only output of a compilation: one Cypher statement and
// the named parameters bound into it. User-supplied literals are always
// carried in Params, never interpolated into Cypher.
type Statement struct {
	Cypher string
	Params map[string]any
}

// WriteSummary reports the side effects of an executed write statement,
// taken from the database result summary. Delete mutations surface their
// effect through NodesDeleted and RelationshipsDeleted.
type WriteSummary struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// JWTConfig carries token-verification settings. It replaces the original
// system's process-wide environment configuration with an explicit struct
// handed to the authorization engine at construction.
type JWTConfig struct {
	// Secret is the HMAC verification key.
	Secret string `yaml:"secret"`

	// NoVerify disables signature verification. Test and development only.
	NoVerify bool `yaml:"no_verify"`

	// RolesPath is a dot path into the claims namespace locating the role
	// list, e.g. "jwt.roles" or "jwt.myapp\\.scopes". Dots inside a single
	// segment are escaped with a backslash.
	RolesPath string `yaml:"roles_path"`
}

// Config is the top-level library configuration.
type Config struct {
	// MaxDepth bounds nested selection and mutation-input traversal.
	// The schema's relationship graph may be cyclic, so recursion is
	// capped by depth rather than by visited tracking.
	MaxDepth int `yaml:"max_depth"`

	// Database is the target database name, passed through opaquely to
	// the executing driver.
	Database string `yaml:"database"`

	JWT JWTConfig `yaml:"jwt"`
}

// DefaultMaxDepth is the traversal depth used when Config.MaxDepth is zero.
const DefaultMaxDepth = 10

// DefaultConfig returns a Config populated from the documented environment
// variables: JWT_SECRET, JWT_NO_VERIFY and JWT_ROLES_OBJECT_PATH.
func DefaultConfig() Config {
	return Config{
		MaxDepth: DefaultMaxDepth,
		JWT: JWTConfig{
			Secret:    os.Getenv("JWT_SECRET"),
			NoVerify:  os.Getenv("JWT_NO_VERIFY") != "",
			RolesPath: os.Getenv("JWT_ROLES_OBJECT_PATH"),
		},
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep the DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("neogql: reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("neogql: parsing config: %w", err)
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return cfg, nil
}
