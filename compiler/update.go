package compiler

import (
	"strconv"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/dialect/cypher"
	"github.com/neogql/neogql/schema"
)

// compileUpdate emits the statement for an update mutation: match the
// targets under update-auth, apply scalar SETs, then nested create,
// connect, disconnect and delete blocks keyed by relationship field, a
// bind validation when configured, and finally the projection of the
// updated nodes.
func (cc *compileCtx) compileUpdate() error {
	t, err := cc.rootType()
	if err != nil {
		return err
	}
	cc.b.Append("MATCH " + cypher.NodePattern("this", t.Name))

	conds, decision, err := cc.authConds(t, neogql.OpUpdate, "this")
	if err != nil {
		return err
	}
	fieldConds, fieldValidates, err := cc.updateFieldAuth(t)
	if err != nil {
		return err
	}
	conds = append(conds, fieldConds...)
	if len(cc.op.Args.Where) > 0 {
		cond, err := cc.compileWhere(t, "this", cc.op.Args.Where)
		if err != nil {
			return err
		}
		conds = append([]string{cond}, conds...)
	}
	if cond := cypher.And(conds...); cond != "" {
		cc.b.Append("WHERE " + cond)
	}

	if err := cc.updateScalars(t); err != nil {
		return err
	}
	if err := cc.nestedMutations(t); err != nil {
		return err
	}

	validate, err := cc.bindValidation(decision, t, "this")
	if err != nil {
		return err
	}
	if validate != "" {
		fieldValidates = append([]string{validate}, fieldValidates...)
	}
	if len(fieldValidates) > 0 {
		cc.b.Append("WITH this")
		for _, line := range fieldValidates {
			cc.b.Append(line)
		}
	}

	proj, err := cc.project(t, "this", cc.op.Selection, 1)
	if err != nil {
		return err
	}
	cc.b.Append("RETURN " + proj + " AS this")
	return nil
}

// updateFieldAuth evaluates the rules carried by the updated fields
// themselves, with the matched node as the predicate subject. Allow and
// where predicates fold into the match filter before any write; bind
// predicates are validated with the node's other bind checks afterwards.
func (cc *compileCtx) updateFieldAuth(t *schema.Type) ([]string, []string, error) {
	var conds, validates []string
	for _, key := range sortedKeys(cc.op.Args.Update) {
		// Unknown keys are reported by updateScalars.
		f, ok := t.Field(key)
		if !ok || len(f.AuthRules) == 0 {
			continue
		}
		fieldConds, decision, err := cc.ruleConds(f.AuthRules, t.Name+"."+f.Name, t, neogql.OpUpdate, "this")
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, fieldConds...)
		validate, err := cc.bindValidation(decision, t, "this")
		if err != nil {
			return nil, nil, err
		}
		if validate != "" {
			validates = append(validates, validate)
		}
	}
	return conds, validates, nil
}

// updateScalars applies the scalar portion of the update input and stamps
// @autogenerate temporal fields covered by the update operation.
func (cc *compileCtx) updateScalars(t *schema.Type) error {
	update := cc.op.Args.Update
	for _, key := range sortedKeys(update) {
		f, ok := t.Field(key)
		if !ok {
			return neogql.NewValidationErrorf(key, "unknown input field on %s", t.Name)
		}
		if f.Kind == schema.KindRelationship {
			return neogql.NewValidationErrorf(key, "relationship %s.%s is mutated through connect, disconnect, create or delete", t.Name, key)
		}
		if !f.Writable(neogql.OpUpdate) {
			return neogql.NewValidationErrorf(key, "%s.%s is not writable on update", t.Name, key)
		}
		val := update[key]
		if err := checkScalarValue(f, val); err != nil {
			return err
		}
		cc.b.Appendf("SET %s = %s", cypher.Prop("this", f.Name), cc.b.Bind("this_update_"+key, val))
	}
	for _, f := range t.Fields {
		if f.AutoGenerate == nil || f.Kind != schema.KindTemporal {
			continue
		}
		if !f.AutoGenerate.Ops.Is(neogql.OpUpdate) {
			continue
		}
		if _, explicit := update[f.Name]; explicit {
			continue
		}
		cc.b.Appendf("SET %s = datetime()", cypher.Prop("this", f.Name))
	}
	return nil
}

// nestedMutations emits the relationship-level blocks of an update in a
// fixed order: create, connect, disconnect, delete.
func (cc *compileCtx) nestedMutations(t *schema.Type) error {
	args := cc.op.Args
	for _, key := range sortedKeys(args.Create) {
		f, err := relField(t, key)
		if err != nil {
			return err
		}
		for i, child := range asInputList(args.Create[key]) {
			childInput, ok := child.(map[string]any)
			if !ok {
				return neogql.NewValidationErrorf(key, "create entries must be input objects")
			}
			childVar := "this_" + key + strconv.Itoa(i)
			cc.b.Append("WITH this")
			if err := cc.createNode(f.Rel.Target, childVar, childInput, 2); err != nil {
				return err
			}
			cc.b.Append("MERGE " + cypher.RelPattern("(this)", "", f.Rel.Type, f.Rel.Direction, "("+childVar+")"))
		}
	}
	for _, key := range sortedKeys(args.Connect) {
		f, err := relField(t, key)
		if err != nil {
			return err
		}
		for i, entry := range asInputList(args.Connect[key]) {
			where, err := entryWhere(key, entry)
			if err != nil {
				return err
			}
			childVar := "this_" + key + "_connect" + strconv.Itoa(i)
			if err := cc.connect(f, "this", childVar, where); err != nil {
				return err
			}
		}
	}
	for _, key := range sortedKeys(args.Disconnect) {
		f, err := relField(t, key)
		if err != nil {
			return err
		}
		for i, entry := range asInputList(args.Disconnect[key]) {
			where, err := entryWhere(key, entry)
			if err != nil {
				return err
			}
			if err := cc.disconnect(f, "this", strconv.Itoa(i), where); err != nil {
				return err
			}
		}
	}
	for _, key := range sortedKeys(args.Delete) {
		f, err := relField(t, key)
		if err != nil {
			return err
		}
		for i, entry := range asInputList(args.Delete[key]) {
			where, err := entryWhere(key, entry)
			if err != nil {
				return err
			}
			if err := cc.deleteRelated(f, "this", strconv.Itoa(i), where); err != nil {
				return err
			}
		}
	}
	return nil
}

// disconnect removes the matched edge without touching either endpoint.
// Disconnect-auth on the target applies to the match; DELETE of a null
// relationship is a no-op, so an empty match falls through silently. The
// block runs in a CALL subquery collapsed by its aggregated RETURN, so a
// filter matching several edges still yields one row per root node.
func (cc *compileCtx) disconnect(f *schema.Field, v, suffix string, where map[string]any) error {
	target := f.Rel.Target
	childVar := v + "_" + f.Name + "_disconnect" + suffix
	relVar := childVar + "_rel"

	conds, decision, err := cc.authConds(target, neogql.OpDisconnect, childVar)
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
	cc.b.Append("OPTIONAL MATCH " + cypher.RelPattern("("+v+")", relVar, f.Rel.Type, f.Rel.Direction, cypher.NodePattern(childVar, target.Name)))
	if cond := cypher.And(conds...); cond != "" {
		cc.b.Append("WHERE " + cond)
	}
	cc.b.Append("DELETE " + relVar)

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

// deleteRelated detach-deletes related nodes matched through the
// relationship, under the target type's delete rules. Like connect and
// disconnect the block is a CALL subquery, so deleting several related
// nodes never multiplies the enclosing rows.
func (cc *compileCtx) deleteRelated(f *schema.Field, v, suffix string, where map[string]any) error {
	target := f.Rel.Target
	childVar := v + "_" + f.Name + "_delete" + suffix

	conds, _, err := cc.authConds(target, neogql.OpDelete, childVar)
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
	cc.b.Append("OPTIONAL MATCH " + cypher.RelPattern("("+v+")", "", f.Rel.Type, f.Rel.Direction, cypher.NodePattern(childVar, target.Name)))
	if cond := cypher.And(conds...); cond != "" {
		cc.b.Append("WHERE " + cond)
	}
	cc.b.Append("DETACH DELETE " + childVar)
	cc.b.Appendf("RETURN count(*) AS %s_count", childVar)
	cc.b.Append("}")
	return nil
}

func relField(t *schema.Type, name string) (*schema.Field, error) {
	f, ok := t.Field(name)
	if !ok || f.Kind != schema.KindRelationship {
		return nil, neogql.NewValidationErrorf(name, "%s has no relationship field %q", t.Name, name)
	}
	return f, nil
}

func entryWhere(key string, entry any) (map[string]any, error) {
	m, ok := entry.(map[string]any)
	if !ok {
		return nil, neogql.NewValidationErrorf(key, "entries must be filter objects")
	}
	if w, ok := m["where"].(map[string]any); ok {
		return w, nil
	}
	return m, nil
}
