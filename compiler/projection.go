package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/dialect/cypher"
	"github.com/neogql/neogql/schema"
)

// project renders the map projection for one type at varName. A nil
// selection falls back to the type's default selection of stored fields,
// which never traverses relationships and therefore always terminates.
func (cc *compileCtx) project(t *schema.Type, varName string, sel []Selection, depth int) (string, error) {
	if err := cc.checkDepth(depth); err != nil {
		return "", err
	}
	if len(sel) == 0 {
		sel = make([]Selection, 0, len(t.DefaultSelection))
		for _, name := range t.DefaultSelection {
			sel = append(sel, Selection{Name: name})
		}
	}
	items := make([]string, 0, len(sel))
	for i := range sel {
		s := &sel[i]
		item, err := cc.projectField(t, varName, s, depth)
		if err != nil {
			return "", err
		}
		if item != "" {
			items = append(items, item)
		}
	}
	return cypher.MapProjection(varName, items), nil
}

func (cc *compileCtx) projectField(t *schema.Type, varName string, s *Selection, depth int) (string, error) {
	f, ok := t.Field(s.Name)
	if !ok {
		return "", neogql.NewValidationErrorf(s.Name, "unknown field on %s", t.Name)
	}
	if f.Ignore || f.WriteOnly {
		return "", neogql.NewValidationErrorf(s.Name, "%s.%s is not readable", t.Name, s.Name)
	}
	if f.Private && !cc.op.Privileged {
		return "", neogql.NewValidationErrorf(s.Name, "%s.%s is not readable", t.Name, s.Name)
	}

	switch f.Kind {
	case schema.KindScalar, schema.KindTemporal, schema.KindSpatial:
		if len(f.AuthRules) == 0 && !f.HasCoalesce && s.Key() == f.Name {
			return "." + cypher.Name(f.Name), nil
		}
		expr, err := cc.fieldAuthExpr(t, f, varName, cc.propExpr(varName, f))
		if err != nil {
			return "", err
		}
		return s.Key() + ": " + expr, nil

	case schema.KindRelationship:
		expr, err := cc.projectRelationship(f, varName, s, depth)
		if err != nil {
			return "", err
		}
		return s.Key() + ": " + expr, nil

	case schema.KindCypher:
		expr, err := cc.projectCypherField(t, f, varName, s, depth)
		if err != nil {
			return "", err
		}
		if expr, err = cc.fieldAuthExpr(t, f, varName, expr); err != nil {
			return "", err
		}
		return s.Key() + ": " + expr, nil

	default:
		// Custom-resolved fields are invisible to the compiler.
		return "", nil
	}
}

// projectRelationship renders a relationship traversal as a pattern
// comprehension. The target type's read rules apply at every hop: a
// where-kind predicate narrows the comprehension, an allow-kind predicate
// raises inside it, and a terminal deny fails the whole compilation.
func (cc *compileCtx) projectRelationship(f *schema.Field, varName string, s *Selection, depth int) (string, error) {
	target := f.Rel.Target
	childVar := varName + "_" + f.Name

	conds, _, err := cc.authConds(target, neogql.OpRead, childVar)
	if err != nil {
		return "", err
	}
	if len(s.Where) > 0 {
		cond, err := cc.compileWhere(target, childVar, s.Where)
		if err != nil {
			return "", err
		}
		conds = append([]string{cond}, conds...)
	}

	proj, err := cc.project(target, childVar, s.Children, depth+1)
	if err != nil {
		return "", err
	}
	pattern := cypher.RelPattern("("+varName+")", "", f.Rel.Type, f.Rel.Direction, cypher.NodePattern(childVar, target.Name))
	expr := cypher.PatternComprehension(pattern, cypher.And(conds...), proj)

	expr, err = cc.listOptions(target, childVar, expr, s.Options)
	if err != nil {
		return "", err
	}
	if !f.List {
		expr = "head(" + expr + ")"
	}
	return expr, nil
}

// listOptions applies sort and pagination to a rendered list expression.
// Nested lists cannot use ORDER BY/SKIP/LIMIT clauses, so ordering goes
// through apoc.coll.sortMulti and pagination through list slicing.
func (cc *compileCtx) listOptions(t *schema.Type, varName, expr string, opts *Options) (string, error) {
	if opts == nil {
		return expr, nil
	}
	if len(opts.Sort) > 0 {
		keys := make([]string, 0, len(opts.Sort))
		for _, item := range opts.Sort {
			f, ok := t.Field(item.Field)
			if !ok || !f.Kind.Stored() {
				return "", neogql.NewValidationErrorf(item.Field, "cannot sort %s by %q", t.Name, item.Field)
			}
			// sortMulti sorts descending by default; '^' asks for ascending.
			if item.Desc {
				keys = append(keys, "'"+f.Name+"'")
			} else {
				keys = append(keys, "'^"+f.Name+"'")
			}
		}
		expr = "apoc.coll.sortMulti(" + expr + ", [" + strings.Join(keys, ", ") + "])"
	}
	switch {
	case opts.Skip != nil && opts.Limit != nil:
		skip := cc.b.Bind(varName+"_skip", *opts.Skip)
		limit := cc.b.Bind(varName+"_limit", *opts.Limit)
		expr = fmt.Sprintf("%s[%s..(%s + %s)]", expr, skip, skip, limit)
	case opts.Skip != nil:
		skip := cc.b.Bind(varName+"_skip", *opts.Skip)
		expr = fmt.Sprintf("%s[%s..]", expr, skip)
	case opts.Limit != nil:
		limit := cc.b.Bind(varName+"_limit", *opts.Limit)
		expr = fmt.Sprintf("%s[..%s]", expr, limit)
	}
	return expr, nil
}

// projectCypherField renders a computed field through
// apoc.cypher.runFirstColumn. The embedded statement sees the current node
// as $this and the request claims as $auth.
func (cc *compileCtx) projectCypherField(t *schema.Type, f *schema.Field, varName string, s *Selection, depth int) (string, error) {
	if err := checkCypherShape(t.Name, f.Name, f.CypherStmt); err != nil {
		return "", err
	}
	call := cc.runFirstColumn(f.CypherStmt, varName, s.Where, f.List)

	target, ok := cc.model.Type(f.Type)
	if !ok {
		// Scalar-valued computed field.
		if f.List {
			return call, nil
		}
		return "head(" + call + ")", nil
	}

	conds, _, err := cc.authConds(target, neogql.OpRead, varName+"_"+f.Name)
	if err != nil {
		return "", err
	}
	childVar := varName + "_" + f.Name
	proj, err := cc.project(target, childVar, s.Children, depth+1)
	if err != nil {
		return "", err
	}
	expr := "[" + childVar + " IN " + call
	if cond := cypher.And(conds...); cond != "" {
		expr += " WHERE " + cond
	}
	expr += " | " + proj + "]"
	if !f.List {
		expr = "head(" + expr + ")"
	}
	return expr, nil
}

// runFirstColumn renders the apoc.cypher.runFirstColumn call for a @cypher
// statement. Extra arguments become statement parameters alongside $this
// and $auth.
func (cc *compileCtx) runFirstColumn(stmt, thisExpr string, args map[string]any, isList bool) string {
	params := []string{"this: " + thisExpr, "auth: " + cc.authParam()}
	for _, key := range sortedKeys(args) {
		params = append(params, key+": "+cc.b.Bind(thisExpr+"_"+key, args[key]))
	}
	quoted := `"` + strings.ReplaceAll(stmt, `"`, `\"`) + `"`
	return fmt.Sprintf("apoc.cypher.runFirstColumn(%s, {%s}, %t)", quoted, strings.Join(params, ", "), isList)
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
