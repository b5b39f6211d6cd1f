package schema

import (
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
)

// Names of the recognized schema directives.
const (
	dirRelationship = "relationship"
	dirCypher       = "cypher"
	dirAuth         = "auth"
	dirExclude      = "exclude"
	dirPrivate      = "private"
	dirAutoGenerate = "autogenerate"
	dirDefault      = "default"
	dirCoalesce     = "coalesce"
	dirReadOnly     = "readonly"
	dirWriteOnly    = "writeonly"
	dirIgnore       = "ignore"
)

// directives is the typed directive table for one type or field.
type directives struct {
	relType      string
	relDirection Direction
	hasRel       bool

	cypherStmt string
	hasCypher  bool

	authRules []auth.Rule

	exclude    neogql.Op
	hasExclude bool

	private   bool
	readOnly  bool
	writeOnly bool
	ignore    bool

	hasDefault bool
	defaultVal any

	hasCoalesce bool
	coalesceVal any

	autoGen    *AutoGenerate
	hasAutoGen bool
}

// parseDirectives builds the directive table for one type or field. It is
// a pure function of the AST and fails with a SchemaError on any
// malformed usage. typ and field name the location for error reporting;
// field is empty for type-level directives.
func parseDirectives(typ, field string, list ast.DirectiveList) (*directives, error) {
	d := &directives{}
	for _, dir := range list {
		args, err := directiveArgs(typ, field, dir)
		if err != nil {
			return nil, err
		}
		switch dir.Name {
		case dirRelationship:
			relType, _ := args["type"].(string)
			direction, _ := args["direction"].(string)
			if relType == "" {
				return nil, neogql.NewSchemaError(typ, field, "@relationship requires a type argument")
			}
			d.relType = relType
			d.relDirection = Direction(direction)
			if !d.relDirection.Valid() {
				return nil, neogql.NewSchemaError(typ, field, "@relationship direction must be OUT, IN or UNDIRECTED, got %q", direction)
			}
			d.hasRel = true
		case dirCypher:
			stmt, _ := args["statement"].(string)
			if stmt == "" {
				return nil, neogql.NewSchemaError(typ, field, "@cypher requires a statement argument")
			}
			d.cypherStmt = stmt
			d.hasCypher = true
		case dirAuth:
			rules, err := parseAuthRules(typ, field, args["rules"])
			if err != nil {
				return nil, err
			}
			d.authRules = append(d.authRules, rules...)
		case dirExclude:
			ops, err := parseOpsArg(args["operations"])
			if err != nil {
				return nil, neogql.NewSchemaError(typ, field, "@exclude: %v", err)
			}
			if ops == 0 {
				ops = neogql.OpAll
			}
			d.exclude |= ops
			d.hasExclude = true
		case dirPrivate:
			d.private = true
		case dirReadOnly:
			d.readOnly = true
		case dirWriteOnly:
			d.writeOnly = true
		case dirIgnore:
			d.ignore = true
		case dirDefault:
			v, ok := args["value"]
			if !ok {
				return nil, neogql.NewSchemaError(typ, field, "@default requires a value argument")
			}
			d.hasDefault = true
			d.defaultVal = v
		case dirCoalesce:
			v, ok := args["value"]
			if !ok {
				return nil, neogql.NewSchemaError(typ, field, "@coalesce requires a value argument")
			}
			d.hasCoalesce = true
			d.coalesceVal = v
		case dirAutoGenerate:
			ops, err := parseOpsArg(args["operations"])
			if err != nil {
				return nil, neogql.NewSchemaError(typ, field, "@autogenerate: %v", err)
			}
			if ops == 0 {
				ops = neogql.OpCreate
			}
			d.autoGen = &AutoGenerate{Ops: ops}
			d.hasAutoGen = true
		}
	}
	if d.readOnly && d.writeOnly {
		return nil, neogql.NewSchemaError(typ, field, "@readonly and @writeonly may not co-occur")
	}
	if d.hasRel && len(d.authRules) > 0 {
		return nil, neogql.NewSchemaError(typ, field, "@auth may not be attached to a @relationship field; express it on the related type")
	}
	if d.hasRel && d.hasCypher {
		return nil, neogql.NewSchemaError(typ, field, "@relationship and @cypher may not co-occur")
	}
	return d, nil
}

// knownArgs lists the accepted argument names per directive.
var knownArgs = map[string][]string{
	dirRelationship: {"type", "direction"},
	dirCypher:       {"statement"},
	dirAuth:         {"rules"},
	dirExclude:      {"operations"},
	dirAutoGenerate: {"operations"},
	dirDefault:      {"value"},
	dirCoalesce:     {"value"},
}

// directiveArgs resolves a directive's arguments into Go values, rejecting
// unknown argument names.
func directiveArgs(typ, field string, dir *ast.Directive) (map[string]any, error) {
	args := make(map[string]any, len(dir.Arguments))
	for _, arg := range dir.Arguments {
		if known, ok := knownArgs[dir.Name]; ok {
			found := false
			for _, name := range known {
				if name == arg.Name {
					found = true
					break
				}
			}
			if !found {
				return nil, neogql.NewSchemaError(typ, field, "unknown argument %q for @%s", arg.Name, dir.Name)
			}
		}
		v, err := arg.Value.Value(nil)
		if err != nil {
			return nil, neogql.NewSchemaError(typ, field, "@%s argument %q: %v", dir.Name, arg.Name, err)
		}
		args[arg.Name] = v
	}
	return args, nil
}

// parseOpsArg folds an operations argument (a single name, "*", or a list
// of names) into an operation mask.
func parseOpsArg(v any) (neogql.Op, error) {
	switch ops := v.(type) {
	case nil:
		return 0, nil
	case string:
		return neogql.ParseOp(ops)
	case []any:
		names := make([]string, 0, len(ops))
		for _, o := range ops {
			s, ok := o.(string)
			if !ok {
				return 0, fmt.Errorf("operations must be strings, got %T", o)
			}
			names = append(names, s)
		}
		return neogql.ParseOps(names)
	}
	return 0, fmt.Errorf("invalid operations value %v", v)
}

// parseAuthRules converts the rules argument of an @auth directive.
func parseAuthRules(typ, field string, v any) ([]auth.Rule, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, neogql.NewSchemaError(typ, field, "@auth requires a rules list")
	}
	rules := make([]auth.Rule, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, neogql.NewSchemaError(typ, field, "@auth rule %d must be an object", i)
		}
		rule, err := parseAuthRule(m)
		if err != nil {
			return nil, neogql.NewSchemaError(typ, field, "@auth rule %d: %v", i, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, neogql.NewSchemaError(typ, field, "@auth rule %d: %v", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseAuthRule(m map[string]any) (auth.Rule, error) {
	rule := auth.Rule{Operations: neogql.OpAll}
	explicitOps := false
	for key, v := range m {
		switch key {
		case "operations":
			ops, err := parseOpsArg(v)
			if err != nil {
				return rule, err
			}
			if ops != 0 {
				rule.Operations = ops
				explicitOps = true
			}
		case "isAuthenticated":
			b, ok := v.(bool)
			if !ok {
				return rule, fmt.Errorf("isAuthenticated must be a boolean")
			}
			rule.IsAuthenticated = b
		case "roles":
			roles, ok := v.([]any)
			if !ok {
				return rule, fmt.Errorf("roles must be a list")
			}
			for _, r := range roles {
				s, ok := r.(string)
				if !ok {
					return rule, fmt.Errorf("roles must be strings")
				}
				rule.Roles = append(rule.Roles, s)
			}
		case "allow":
			p, err := parsePredicate(v)
			if err != nil {
				return rule, fmt.Errorf("allow: %v", err)
			}
			rule.Allow = p
		case "where":
			p, err := parsePredicate(v)
			if err != nil {
				return rule, fmt.Errorf("where: %v", err)
			}
			rule.Where = p
		case "bind":
			p, err := parsePredicate(v)
			if err != nil {
				return rule, fmt.Errorf("bind: %v", err)
			}
			rule.Bind = p
		case "AND", "OR":
			list, ok := v.([]any)
			if !ok {
				return rule, fmt.Errorf("%s must be a list of rules", key)
			}
			for _, entry := range list {
				sub, ok := entry.(map[string]any)
				if !ok {
					return rule, fmt.Errorf("%s entries must be objects", key)
				}
				nested, err := parseAuthRule(sub)
				if err != nil {
					return rule, err
				}
				if key == "AND" {
					rule.And = append(rule.And, nested)
				} else {
					rule.Or = append(rule.Or, nested)
				}
			}
		default:
			return rule, fmt.Errorf("unknown rule key %q", key)
		}
	}
	// A rule that names no operations applies to every operation its
	// predicate kind is valid for; explicitly naming an invalid one (e.g.
	// bind on read) is rejected by Validate.
	if kind := rule.Kind(); kind != 0 && !explicitOps {
		rule.Operations &= kind.Ops()
	}
	return rule, nil
}

// parsePredicate converts a predicate tree literal. Maps with multiple
// keys combine implicitly with AND; a map value under a non-operator key
// nests the predicate under a relationship field.
func parsePredicate(v any) (*auth.Predicate, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("predicate must be an object, got %T", v)
	}
	// Keys are iterated in sorted order so that a rebuilt model renders
	// identical statement text.
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var nodes []*auth.Predicate
	for _, key := range keys {
		val := m[key]
		switch key {
		case "AND", "OR":
			list, ok := val.([]any)
			if !ok {
				return nil, fmt.Errorf("%s must be a list", key)
			}
			children := make([]*auth.Predicate, 0, len(list))
			for _, entry := range list {
				child, err := parsePredicate(entry)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
			node := &auth.Predicate{}
			if key == "AND" {
				node.And = children
			} else {
				node.Or = children
			}
			nodes = append(nodes, node)
		default:
			if nested, ok := val.(map[string]any); ok {
				child, err := parsePredicate(nested)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, &auth.Predicate{Field: key, Nested: child})
				continue
			}
			nodes = append(nodes, &auth.Predicate{Field: key, Value: val})
		}
	}
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("empty predicate")
	case 1:
		return nodes[0], nil
	}
	return &auth.Predicate{And: nodes}, nil
}
