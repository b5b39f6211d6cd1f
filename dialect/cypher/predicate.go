package cypher

import "strings"

// Comparison helpers. Each takes rendered expressions (a property access
// and a bound parameter placeholder) and returns a predicate expression.

// EQ returns the expr = param predicate.
func EQ(expr, param string) string { return expr + " = " + param }

// NEQ returns the NOT expr = param predicate. Cypher's <> treats null
// comparisons as null; the negated form matches GraphQL _not semantics.
func NEQ(expr, param string) string { return "NOT " + expr + " = " + param }

// GT returns the expr > param predicate.
func GT(expr, param string) string { return expr + " > " + param }

// GTE returns the expr >= param predicate.
func GTE(expr, param string) string { return expr + " >= " + param }

// LT returns the expr < param predicate.
func LT(expr, param string) string { return expr + " < " + param }

// LTE returns the expr <= param predicate.
func LTE(expr, param string) string { return expr + " <= " + param }

// In returns the expr IN param predicate.
func In(expr, param string) string { return expr + " IN " + param }

// NotIn returns the NOT expr IN param predicate.
func NotIn(expr, param string) string { return "NOT " + expr + " IN " + param }

// Contains returns the expr CONTAINS param predicate.
func Contains(expr, param string) string { return expr + " CONTAINS " + param }

// StartsWith returns the expr STARTS WITH param predicate.
func StartsWith(expr, param string) string { return expr + " STARTS WITH " + param }

// EndsWith returns the expr ENDS WITH param predicate.
func EndsWith(expr, param string) string { return expr + " ENDS WITH " + param }

// IsNull returns the expr IS NULL predicate.
func IsNull(expr string) string { return expr + " IS NULL" }

// Not negates a predicate expression.
func Not(expr string) string { return "NOT (" + expr + ")" }

// And joins predicate expressions with AND. Empty expressions are dropped;
// a single expression is returned unparenthesized.
func And(exprs ...string) string { return join(exprs, " AND ") }

// Or joins predicate expressions with OR.
func Or(exprs ...string) string { return join(exprs, " OR ") }

func join(exprs []string, sep string) string {
	parts := exprs[:0:0]
	for _, e := range exprs {
		if e != "" {
			parts = append(parts, e)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Coalesce wraps an expression in coalesce(expr, fallback).
func Coalesce(expr, fallback string) string {
	return "coalesce(" + expr + ", " + fallback + ")"
}

// Any renders an existential quantifier over a pattern comprehension:
// ANY(v IN [pattern | x] WHERE cond).
func Any(v, list, cond string) string {
	return "ANY(" + v + " IN " + list + " WHERE " + cond + ")"
}

// All renders a universal quantifier over a pattern comprehension:
// ALL(v IN [pattern | x] WHERE cond).
func All(v, list, cond string) string {
	return "ALL(" + v + " IN " + list + " WHERE " + cond + ")"
}

// ValidatePredicate renders an apoc.util.validatePredicate call that raises
// when pred is false. Used inside WHERE so that an authorization failure is
// a hard error rather than a filtered row.
func ValidatePredicate(pred, msg string) string {
	return `apoc.util.validatePredicate(NOT (` + pred + `), "` + msg + `", [0])`
}

// ValidateCall renders a standalone CALL apoc.util.validate clause raising
// when pred is false. Used after writes so that a mismatch aborts the
// surrounding transaction.
func ValidateCall(pred, msg string) string {
	return `CALL apoc.util.validate(NOT (` + pred + `), "` + msg + `", [0])`
}
