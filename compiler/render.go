package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
	"github.com/neogql/neogql/dialect/cypher"
	"github.com/neogql/neogql/schema"
)

// Filter operator suffixes in match order. Longer suffixes are listed
// first so that _not_in is not mistaken for _in on a field named x_not.
var whereSuffixes = []struct {
	suffix string
	render func(expr, param string) string
	list   bool
	str    bool
	ord    bool
}{
	{"_not_starts_with", func(e, p string) string { return cypher.Not(cypher.StartsWith(e, p)) }, false, true, false},
	{"_not_ends_with", func(e, p string) string { return cypher.Not(cypher.EndsWith(e, p)) }, false, true, false},
	{"_not_contains", func(e, p string) string { return cypher.Not(cypher.Contains(e, p)) }, false, true, false},
	{"_starts_with", cypher.StartsWith, false, true, false},
	{"_ends_with", cypher.EndsWith, false, true, false},
	{"_contains", cypher.Contains, false, true, false},
	{"_not_in", cypher.NotIn, true, false, false},
	{"_in", cypher.In, true, false, false},
	{"_not", cypher.NEQ, false, false, false},
	{"_gte", cypher.GTE, false, false, true},
	{"_gt", cypher.GT, false, false, true},
	{"_lte", cypher.LTE, false, false, true},
	{"_lt", cypher.LT, false, false, true},
}

// compileWhere translates a where argument map into a predicate
// expression scoped to varName. Keys are processed in sorted order so the
// emitted text is deterministic.
func (cc *compileCtx) compileWhere(t *schema.Type, varName string, where map[string]any) (string, error) {
	if len(where) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var exprs []string
	for _, key := range keys {
		val := where[key]
		switch key {
		case "AND", "OR":
			list, ok := val.([]any)
			if !ok {
				return "", neogql.NewValidationErrorf(key, "%s must be a list of filters", key)
			}
			var children []string
			for _, entry := range list {
				m, ok := entry.(map[string]any)
				if !ok {
					return "", neogql.NewValidationErrorf(key, "%s entries must be filter objects", key)
				}
				child, err := cc.compileWhere(t, varName, m)
				if err != nil {
					return "", err
				}
				children = append(children, child)
			}
			if key == "AND" {
				exprs = append(exprs, cypher.And(children...))
			} else {
				exprs = append(exprs, cypher.Or(children...))
			}
			continue
		}
		expr, err := cc.compileWhereEntry(t, varName, key, val)
		if err != nil {
			return "", err
		}
		exprs = append(exprs, expr)
	}
	return cypher.And(exprs...), nil
}

func (cc *compileCtx) compileWhereEntry(t *schema.Type, varName, key string, val any) (string, error) {
	// Relationship filters: <rel> (some related node matches) and
	// <rel>_none (no related node matches).
	base, none := key, false
	if strings.HasSuffix(key, "_none") {
		base, none = strings.TrimSuffix(key, "_none"), true
	}
	if f, ok := t.Field(base); ok && f.Kind == schema.KindRelationship {
		nested, ok := val.(map[string]any)
		if !ok {
			return "", neogql.NewValidationErrorf(key, "relationship filter must be an object")
		}
		childVar := varName + "_" + base
		cond, err := cc.compileWhere(f.Rel.Target, childVar, nested)
		if err != nil {
			return "", err
		}
		pattern := cypher.RelPattern("("+varName+")", "", f.Rel.Type, f.Rel.Direction, cypher.NodePattern(childVar, f.Rel.Target.Name))
		comp := cypher.PatternComprehension(pattern, cond, "1")
		if none {
			return "size(" + comp + ") = 0", nil
		}
		return "size(" + comp + ") > 0", nil
	}

	// Scalar filters with operator suffixes.
	for _, op := range whereSuffixes {
		name, ok := strings.CutSuffix(key, op.suffix)
		if !ok {
			continue
		}
		f, ok := t.Field(name)
		if !ok || !f.Kind.Stored() {
			continue
		}
		if err := checkFilterValue(f, val, op.list, op.str, op.ord); err != nil {
			return "", err
		}
		param := cc.b.Bind(varName+"_"+key, val)
		return op.render(cc.propExpr(varName, f), param), nil
	}

	// Plain equality.
	f, ok := t.Field(key)
	if !ok {
		return "", neogql.NewValidationErrorf(key, "unknown filter field on %s", t.Name)
	}
	if !f.Kind.Stored() {
		return "", neogql.NewValidationErrorf(key, "%s field cannot be filtered directly", f.Kind)
	}
	if err := checkScalarValue(f, val); err != nil {
		return "", err
	}
	if val == nil {
		return cypher.IsNull(cypher.Prop(varName, f.Name)), nil
	}
	param := cc.b.Bind(varName+"_"+key, val)
	return cypher.EQ(cc.propExpr(varName, f), param), nil
}

// propExpr renders the property access for a field, wrapping it in
// coalesce when the field declares a @coalesce default.
func (cc *compileCtx) propExpr(varName string, f *schema.Field) string {
	expr := cypher.Prop(varName, f.Name)
	if f.HasCoalesce {
		fallback := cc.b.Bind(varName+"_"+f.Name+"_coalesce", f.Coalesce)
		return cypher.Coalesce(expr, fallback)
	}
	return expr
}

// checkFilterValue validates an operator-suffixed filter value.
func checkFilterValue(f *schema.Field, v any, list, str, ord bool) error {
	if list {
		vs, ok := v.([]any)
		if !ok {
			return neogql.NewValidationErrorf(f.Name, "list filter requires a list value")
		}
		for _, entry := range vs {
			if err := checkScalarValue(f, entry); err != nil {
				return err
			}
		}
		return nil
	}
	if str && f.Type != "String" && f.Type != "ID" {
		return neogql.NewValidationErrorf(f.Name, "string filter on non-string field")
	}
	if ord && f.Type == "Boolean" {
		return neogql.NewValidationErrorf(f.Name, "ordering filter on boolean field")
	}
	return checkScalarValue(f, v)
}

// checkScalarValue validates a literal against the field's declared type.
func checkScalarValue(f *schema.Field, v any) error {
	if v == nil {
		return nil
	}
	ok := true
	switch f.Type {
	case "ID", "String":
		_, ok = v.(string)
	case "Int":
		switch v.(type) {
		case int, int32, int64, float64:
		default:
			ok = false
		}
	case "Float":
		switch v.(type) {
		case int, int32, int64, float64:
		default:
			ok = false
		}
	case "Boolean":
		_, ok = v.(bool)
	default:
		if f.Kind == schema.KindTemporal {
			_, ok = v.(string)
		}
		if f.Kind == schema.KindSpatial {
			_, ok = v.(map[string]any)
		}
	}
	if !ok {
		return neogql.NewValidationErrorf(f.Name, "value %v does not match %s", v, f.Type)
	}
	return nil
}

// renderAuthPredicate renders a rule predicate tree against varName.
// universal selects the ALL quantifier used by bind predicates;
// existential predicates (allow, where) quantify relationship hops with
// ANY. Claim references that fail to resolve render as a literal false so
// that denial is total.
func (cc *compileCtx) renderAuthPredicate(p *auth.Predicate, t *schema.Type, varName string, universal bool) (string, error) {
	switch {
	case len(p.And) > 0:
		var exprs []string
		for _, child := range p.And {
			expr, err := cc.renderAuthPredicate(child, t, varName, universal)
			if err != nil {
				return "", err
			}
			exprs = append(exprs, expr)
		}
		return cypher.And(exprs...), nil
	case len(p.Or) > 0:
		var exprs []string
		for _, child := range p.Or {
			expr, err := cc.renderAuthPredicate(child, t, varName, universal)
			if err != nil {
				return "", err
			}
			exprs = append(exprs, expr)
		}
		return cypher.Or(exprs...), nil
	}

	f, ok := t.Field(p.Field)
	if !ok {
		return "", neogql.NewSchemaError(t.Name, p.Field, "auth predicate references unknown field")
	}
	if p.Nested != nil {
		if f.Kind != schema.KindRelationship {
			return "", neogql.NewSchemaError(t.Name, p.Field, "auth predicate nests under a non-relationship field")
		}
		childVar := varName + "_" + f.Name
		cond, err := cc.renderAuthPredicate(p.Nested, f.Rel.Target, childVar, universal)
		if err != nil {
			return "", err
		}
		pattern := cypher.RelPattern("("+varName+")", "", f.Rel.Type, f.Rel.Direction, cypher.NodePattern(childVar, f.Rel.Target.Name))
		list := "[" + pattern + " | " + childVar + "]"
		if universal {
			return cypher.All(childVar, list, cond), nil
		}
		return cypher.Any(childVar, list, cond), nil
	}

	value := p.Value
	if auth.IsRef(value) {
		plucked, ok := cc.actx.Pluck(value.(string))
		if !ok {
			return "false", nil
		}
		value = plucked
	}
	if value == nil {
		return cypher.IsNull(cypher.Prop(varName, f.Name)), nil
	}
	param := cc.b.Bind(varName+"_auth_"+f.Name, value)
	return cypher.EQ(cypher.Prop(varName, f.Name), param), nil
}

// ruleConds evaluates a rules list for one operation and returns the
// WHERE conjuncts to fold in: the where-kind predicate as a plain filter
// and the allow-kind predicate as a raising validatePredicate. Predicates
// are rendered against varName on t. A terminal deny returns a
// ForbiddenError naming the protected surface.
func (cc *compileCtx) ruleConds(rules []auth.Rule, name string, t *schema.Type, op neogql.Op, varName string) ([]string, *auth.Decision, error) {
	decision := cc.engine.Evaluate(rules, op, cc.actx)
	if !decision.Allow {
		return nil, nil, forbidden(name, op)
	}
	var conds []string
	switch decision.Kind {
	case auth.KindWhere:
		expr, err := cc.renderAuthPredicate(decision.Predicate, t, varName, false)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, expr)
	case auth.KindAllow:
		expr, err := cc.renderAuthPredicate(decision.Predicate, t, varName, false)
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, cypher.ValidatePredicate(expr, forbiddenMsg))
	}
	return conds, &decision, nil
}

// authConds evaluates the type-level rules for one operation.
func (cc *compileCtx) authConds(t *schema.Type, op neogql.Op, varName string) ([]string, *auth.Decision, error) {
	return cc.ruleConds(t.AuthRules, t.Name, t, op, varName)
}

// fieldAuthExpr applies a field's own read rules to its projected
// expression, with the owning node as the predicate subject. A where
// predicate nulls the value when it does not hold, an allow predicate
// raises, and a terminal deny fails the whole compilation.
func (cc *compileCtx) fieldAuthExpr(t *schema.Type, f *schema.Field, varName, expr string) (string, error) {
	if len(f.AuthRules) == 0 {
		return expr, nil
	}
	decision := cc.engine.Evaluate(f.AuthRules, neogql.OpRead, cc.actx)
	if !decision.Allow {
		return "", forbidden(t.Name+"."+f.Name, neogql.OpRead)
	}
	if decision.Predicate == nil {
		return expr, nil
	}
	pred, err := cc.renderAuthPredicate(decision.Predicate, t, varName, false)
	if err != nil {
		return "", err
	}
	if decision.Kind == auth.KindAllow {
		pred = cypher.ValidatePredicate(pred, forbiddenMsg)
	}
	return "CASE WHEN " + pred + " THEN " + expr + " ELSE NULL END", nil
}

// bindValidation renders the post-write validate call for a bind-kind
// decision, or nothing for other kinds.
func (cc *compileCtx) bindValidation(decision *auth.Decision, t *schema.Type, varName string) (string, error) {
	if decision == nil || decision.Kind != auth.KindBind {
		return "", nil
	}
	expr, err := cc.renderAuthPredicate(decision.Predicate, t, varName, true)
	if err != nil {
		return "", err
	}
	return cypher.ValidateCall(expr, forbiddenMsg), nil
}

// orderBy renders an ORDER BY clause for the root options.
func (cc *compileCtx) orderBy(t *schema.Type, varName string, opts *Options) (string, error) {
	if opts == nil || len(opts.Sort) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(opts.Sort))
	for _, item := range opts.Sort {
		f, ok := t.Field(item.Field)
		if !ok || !f.Kind.Stored() {
			return "", neogql.NewValidationErrorf(item.Field, "cannot sort %s by %q", t.Name, item.Field)
		}
		dir := "ASC"
		if item.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", cypher.Prop(varName, f.Name), dir))
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}
