package compiler

import (
	"github.com/neogql/neogql"
	"github.com/neogql/neogql/dialect/cypher"
)

// compileRead emits the statement for a root query: a MATCH over the
// type's label, a WHERE folding the caller's filter with the read-auth
// conjuncts, and a map-projection RETURN with optional ordering and
// pagination.
func (cc *compileCtx) compileRead() error {
	t, err := cc.rootType()
	if err != nil {
		return err
	}
	cc.b.Append("MATCH " + cypher.NodePattern("this", t.Name))

	conds, _, err := cc.authConds(t, neogql.OpRead, "this")
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

	if err := cc.appendRootOptions(t); err != nil {
		return err
	}
	proj, err := cc.project(t, "this", cc.op.Selection, 1)
	if err != nil {
		return err
	}
	cc.b.Append("RETURN " + proj + " AS this")
	return nil
}
