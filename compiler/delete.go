package compiler

import (
	"strconv"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/dialect/cypher"
)

// compileDelete emits the statement for a delete mutation. The projection
// is captured into a value before the node is detached, so the response
// can still describe what was removed; nested deletes run first so the
// children's edges are gone before the root node goes.
func (cc *compileCtx) compileDelete() error {
	t, err := cc.rootType()
	if err != nil {
		return err
	}
	cc.b.Append("MATCH " + cypher.NodePattern("this", t.Name))

	conds, decision, err := cc.authConds(t, neogql.OpDelete, "this")
	if err != nil {
		return err
	}
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

	// A bind predicate on delete is a precondition on the node's final
	// state, checked before it is removed.
	validate, err := cc.bindValidation(decision, t, "this")
	if err != nil {
		return err
	}
	if validate != "" {
		cc.b.Append("WITH this")
		cc.b.Append(validate)
	}

	proj, err := cc.project(t, "this", cc.op.Selection, 1)
	if err != nil {
		return err
	}
	cc.b.Appendf("WITH this, %s AS data", proj)

	for _, key := range sortedKeys(cc.op.Args.Delete) {
		f, err := relField(t, key)
		if err != nil {
			return err
		}
		for i, entry := range asInputList(cc.op.Args.Delete[key]) {
			where, err := entryWhere(key, entry)
			if err != nil {
				return err
			}
			if err := cc.deleteRelated(f, "this", strconv.Itoa(i), where); err != nil {
				return err
			}
		}
	}

	cc.b.Append("DETACH DELETE this")
	cc.b.Append("RETURN data")
	return nil
}
