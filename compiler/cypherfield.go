package compiler

import (
	"strings"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/dialect/cypher"
	"github.com/neogql/neogql/schema"
)

// checkCypherShape verifies that a @cypher statement can be embedded in
// apoc.cypher.runFirstColumn: it must end in a RETURN clause yielding
// exactly one column. Multi-column returns would silently drop data, so
// they are rejected instead.
func checkCypherShape(typeName, fieldName, stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return &neogql.UnsupportedCypherShapeError{
			Type: typeName, Field: fieldName, Statement: stmt,
			Reason: "empty statement",
		}
	}
	idx := lastReturnIndex(trimmed)
	if idx < 0 {
		return &neogql.UnsupportedCypherShapeError{
			Type: typeName, Field: fieldName, Statement: stmt,
			Reason: "statement has no RETURN clause",
		}
	}
	cols := splitTopLevel(trimmed[idx+len("RETURN"):])
	if len(cols) != 1 {
		return &neogql.UnsupportedCypherShapeError{
			Type: typeName, Field: fieldName, Statement: stmt,
			Reason: "RETURN clause must yield exactly one column",
		}
	}
	return nil
}

// lastReturnIndex locates the final top-level RETURN keyword, skipping
// string literals and bracketed subexpressions.
func lastReturnIndex(stmt string) int {
	upper := strings.ToUpper(stmt)
	depth, last := 0, -1
	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case '\'', '"', '`':
			i = skipQuoted(upper, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case 'R':
			if depth == 0 && strings.HasPrefix(upper[i:], "RETURN") && wordBoundary(upper, i, i+len("RETURN")) {
				last = i
				i += len("RETURN") - 1
			}
		}
	}
	return last
}

// splitTopLevel splits an expression list on commas outside any quotes or
// brackets, trimming whitespace and dropping empty items.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	flush := func(end int) {
		if p := strings.TrimSpace(s[start:end]); p != "" {
			parts = append(parts, p)
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = skipQuoted(s, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return parts
}

// skipQuoted returns the index of the closing quote matching s[i],
// honoring backslash escapes. Unterminated literals run to end of input.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return len(s) - 1
}

func wordBoundary(s string, start, end int) bool {
	boundary := func(c byte) bool {
		return !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_')
	}
	return (start == 0 || boundary(s[start-1])) && (end >= len(s) || boundary(s[end]))
}

// compileCypherRoot compiles a custom @cypher Query or Mutation field.
// The statement runs through runFirstColumn with the operation arguments
// and $auth as parameters; object-typed results are unwound and projected
// like any other read.
func (cc *compileCtx) compileCypherRoot() error {
	field, ok := cc.model.QueryField(cc.op.CypherField)
	if !ok {
		field, ok = cc.model.MutationField(cc.op.CypherField)
	}
	if !ok {
		return neogql.NewValidationErrorf(cc.op.CypherField, "unknown custom operation")
	}
	if err := checkCypherShape("", field.Name, field.CypherStmt); err != nil {
		return err
	}

	params := []string{"auth: " + cc.authParam()}
	for _, key := range sortedKeys(cc.op.Args.Params) {
		params = append(params, key+": "+cc.b.Bind(key, cc.op.Args.Params[key]))
	}
	quoted := `"` + strings.ReplaceAll(field.CypherStmt, `"`, `\"`) + `"`
	cc.b.Appendf("WITH apoc.cypher.runFirstColumn(%s, {%s}, true) AS value", quoted, strings.Join(params, ", "))
	cc.b.Append("UNWIND value AS this")

	target, isNode := cc.model.Type(field.Type)
	if !isNode {
		cc.b.Append("RETURN this")
		if !field.List {
			cc.b.Append("LIMIT 1")
		}
		return nil
	}

	conds, _, err := cc.authConds(target, neogql.OpRead, "this")
	if err != nil {
		return err
	}
	if len(cc.op.Args.Where) > 0 {
		cond, err := cc.compileWhere(target, "this", cc.op.Args.Where)
		if err != nil {
			return err
		}
		conds = append([]string{cond}, conds...)
	}
	if cond := cypher.And(conds...); cond != "" {
		cc.b.Append("WHERE " + cond)
	}

	if err := cc.appendRootOptions(target); err != nil {
		return err
	}
	proj, err := cc.project(target, "this", cc.op.Selection, 1)
	if err != nil {
		return err
	}
	cc.b.Append("RETURN " + proj + " AS this")
	if !field.List {
		cc.b.Append("LIMIT 1")
	}
	return nil
}

// appendRootOptions applies the root options on the matched node before
// the projection is built. ORDER BY must see the stored properties: after
// the RETURN the row is the projected map, and a sort key outside the
// selection would order by null.
func (cc *compileCtx) appendRootOptions(t *schema.Type) error {
	opts := cc.op.Args.Options
	if opts == nil {
		return nil
	}
	clause, err := cc.orderBy(t, "this", opts)
	if err != nil {
		return err
	}
	if clause == "" && opts.Skip == nil && opts.Limit == nil {
		return nil
	}
	cc.b.Append("WITH this")
	if clause != "" {
		cc.b.Append(clause)
	}
	if opts.Skip != nil {
		cc.b.Append("SKIP " + cc.b.Bind("skip", *opts.Skip))
	}
	if opts.Limit != nil {
		cc.b.Append("LIMIT " + cc.b.Bind("limit", *opts.Limit))
	}
	return nil
}
