package compiler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/dialect/cypher"
	"github.com/neogql/neogql/schema"
)

// compileCreate emits the statement for a create mutation. Each input
// object becomes its own CALL subquery so that per-node SET, nested
// create/connect work and bind validation stay scoped to one node; the
// final RETURN projects every created node in input order.
func (cc *compileCtx) compileCreate() error {
	t, err := cc.rootType()
	if err != nil {
		return err
	}
	if len(cc.op.Args.Input) == 0 {
		return neogql.NewValidationErrorf("input", "create requires at least one input object")
	}

	vars := make([]string, 0, len(cc.op.Args.Input))
	for i, input := range cc.op.Args.Input {
		v := "this" + strconv.Itoa(i)
		cc.b.Append("CALL {")
		if err := cc.createNode(t, v, input, 1); err != nil {
			return err
		}
		cc.b.Append("RETURN " + v)
		cc.b.Append("}")
		vars = append(vars, v)
	}

	projs := make([]string, 0, len(vars))
	for _, v := range vars {
		proj, err := cc.project(t, v, cc.op.Selection, 1)
		if err != nil {
			return err
		}
		projs = append(projs, proj)
	}
	cc.b.Append("RETURN [" + strings.Join(projs, ", ") + "] AS data")
	return nil
}

// createNode emits CREATE and SET clauses for one node, recursing into
// nested relationship input. The type's own create rules are evaluated
// here so that nested creates are authorized per target type; a bind
// predicate is validated after all writes on the node.
func (cc *compileCtx) createNode(t *schema.Type, v string, input map[string]any, depth int) error {
	if err := cc.checkDepth(depth); err != nil {
		return err
	}
	decision := cc.engine.Evaluate(t.AuthRules, neogql.OpCreate, cc.actx)
	if !decision.Allow {
		return forbidden(t.Name, neogql.OpCreate)
	}

	cc.b.Append("CREATE " + cypher.NodePattern(v, t.Name))

	consumed := make(map[string]bool, len(input))
	type relInput struct {
		field *schema.Field
		value any
	}
	var rels []relInput
	var validates []string

	// Scalar properties follow field declaration order so the emitted
	// statement is independent of input-map iteration order.
	for _, f := range t.Fields {
		val, present := input[f.Name]
		if present {
			consumed[f.Name] = true
		}
		switch {
		case f.Kind == schema.KindRelationship:
			if present {
				rels = append(rels, relInput{field: f, value: val})
			}
			continue
		case f.Kind == schema.KindCypher, f.Kind == schema.KindCustom:
			if present {
				return neogql.NewValidationErrorf(f.Name, "%s.%s is not writable", t.Name, f.Name)
			}
			continue
		}

		if !present && f.AutoGenerate != nil && f.AutoGenerate.Ops.Is(neogql.OpCreate) {
			if f.Type == "ID" {
				cc.b.Appendf("SET %s = randomUUID()", cypher.Prop(v, f.Name))
			} else {
				cc.b.Appendf("SET %s = datetime()", cypher.Prop(v, f.Name))
			}
			continue
		}
		if !present {
			if f.HasDefault {
				cc.b.Appendf("SET %s = %s", cypher.Prop(v, f.Name), cc.b.Bind(v+"_"+f.Name, f.Default))
			}
			continue
		}
		if !f.Writable(neogql.OpCreate) {
			return neogql.NewValidationErrorf(f.Name, "%s.%s is not writable", t.Name, f.Name)
		}
		if err := checkScalarValue(f, val); err != nil {
			return err
		}
		// The field's own create rules apply to the explicit write: a deny
		// fails the compilation, a bind predicate is validated with the
		// node's other bind checks once every write on it is done.
		if len(f.AuthRules) > 0 {
			fdec := cc.engine.Evaluate(f.AuthRules, neogql.OpCreate, cc.actx)
			if !fdec.Allow {
				return forbidden(t.Name+"."+f.Name, neogql.OpCreate)
			}
			validate, err := cc.bindValidation(&fdec, t, v)
			if err != nil {
				return err
			}
			if validate != "" {
				validates = append(validates, validate)
			}
		}
		cc.b.Appendf("SET %s = %s", cypher.Prop(v, f.Name), cc.b.Bind(v+"_"+f.Name, val))
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		if !consumed[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		return neogql.NewValidationErrorf(keys[0], "unknown input field on %s", t.Name)
	}

	for _, rel := range rels {
		if err := cc.createRelInput(rel.field, v, rel.value, depth); err != nil {
			return err
		}
	}

	validate, err := cc.bindValidation(&decision, t, v)
	if err != nil {
		return err
	}
	if validate != "" {
		validates = append([]string{validate}, validates...)
	}
	if len(validates) > 0 {
		cc.b.Append("WITH *")
		for _, line := range validates {
			cc.b.Append(line)
		}
	}
	return nil
}

// createRelInput handles the { create, connect } object supplied for a
// relationship field inside create input.
func (cc *compileCtx) createRelInput(f *schema.Field, v string, val any, depth int) error {
	m, ok := val.(map[string]any)
	if !ok {
		return neogql.NewValidationErrorf(f.Name, "relationship input must be an object with create or connect")
	}
	for _, key := range sortedKeys(m) {
		switch key {
		case "create":
			for i, child := range asInputList(m[key]) {
				childVar := v + "_" + f.Name + strconv.Itoa(i)
				childInput, ok := child.(map[string]any)
				if !ok {
					return neogql.NewValidationErrorf(f.Name, "create entries must be input objects")
				}
				if err := cc.createNode(f.Rel.Target, childVar, childInput, depth+1); err != nil {
					return err
				}
				cc.b.Append("MERGE " + cypher.RelPattern("("+v+")", "", f.Rel.Type, f.Rel.Direction, "("+childVar+")"))
			}
		case "connect":
			for i, entry := range asInputList(m[key]) {
				where, ok := entry.(map[string]any)
				if !ok {
					return neogql.NewValidationErrorf(f.Name, "connect entries must be filter objects")
				}
				if w, ok := where["where"].(map[string]any); ok {
					where = w
				}
				childVar := v + "_" + f.Name + "_connect" + strconv.Itoa(i)
				if err := cc.connect(f, v, childVar, where); err != nil {
					return err
				}
			}
		default:
			return neogql.NewValidationErrorf(f.Name, "unknown relationship input key %q", key)
		}
	}
	return nil
}

// connect matches an existing target node and merges the edge. The match
// is optional and the merge guarded, so a filter that matches nothing is
// a silent no-op rather than an error; connect-auth still applies and a
// bind predicate is validated on the matched node. The whole block runs
// in a CALL subquery whose aggregated RETURN collapses it back to one
// row, so a filter matching several targets cannot multiply the result.
func (cc *compileCtx) connect(f *schema.Field, v, childVar string, where map[string]any) error {
	target := f.Rel.Target
	conds, decision, err := cc.authConds(target, neogql.OpConnect, childVar)
	if err != nil {
		return err
	}
	if len(where) > 0 {
		cond, err := cc.compileWhere(target, childVar, where)
		if err != nil {
			return err
		}
		conds = append([]string{cond}, conds...)
	}
	cc.b.Append("CALL {")
	cc.b.Append("WITH " + v)
	cc.b.Append("OPTIONAL MATCH " + cypher.NodePattern(childVar, target.Name))
	if cond := cypher.And(conds...); cond != "" {
		cc.b.Append("WHERE " + cond)
	}
	cc.b.Appendf("FOREACH (_ IN CASE WHEN %s IS NULL THEN [] ELSE [1] END | MERGE %s)",
		childVar, cypher.RelPattern("("+v+")", "", f.Rel.Type, f.Rel.Direction, "("+childVar+")"))

	validate, err := cc.bindValidation(decision, target, childVar)
	if err != nil {
		return err
	}
	if validate != "" {
		cc.b.Append("WITH " + childVar)
		cc.b.Append(validate)
	}
	cc.b.Appendf("RETURN count(*) AS %s_count", childVar)
	cc.b.Append("}")
	return nil
}

// asInputList normalizes a nested-input value to a list: a single object
// stands for a one-element list.
func asInputList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return nil
	}
	return []any{v}
}
