// Package auth evaluates declarative authorization rules against a
// request's authentication claims. Rules are attached to types and fields
// at schema-build time; evaluation yields either a terminal deny, an
// unconditional allow, or a predicate tree handed to the compiler for
// injection into the generated Cypher.
package auth

import (
	"fmt"

	"github.com/neogql/neogql"
)

// PredicateKind distinguishes the three predicate semantics a rule may
// carry. Exactly one applies per rule.
type PredicateKind uint8

const (
	// KindAllow predicates render pre-operation inside MATCH/WHERE and
	// raise on mismatch. Relationship hops use an existential (ANY)
	// quantifier across matched related nodes.
	KindAllow PredicateKind = iota + 1

	// KindWhere predicates compose into WHERE before traversal and filter
	// rather than raise.
	KindWhere

	// KindBind predicates render post-operation inside the same
	// transaction and cause a rollback on mismatch. Relationship hops use
	// a universal (ALL) quantifier and are limited to a single hop.
	KindBind
)

// String returns the directive-argument name of the kind.
func (k PredicateKind) String() string {
	switch k {
	case KindAllow:
		return "allow"
	case KindWhere:
		return "where"
	case KindBind:
		return "bind"
	}
	return fmt.Sprintf("PredicateKind(%d)", k)
}

// kindOps is the fixed kind-to-operation applicability table. A rule using
// a kind outside its set is rejected at schema-build time.
var kindOps = map[PredicateKind]neogql.Op{
	KindAllow: neogql.OpRead | neogql.OpUpdate | neogql.OpConnect | neogql.OpDisconnect | neogql.OpDelete,
	KindWhere: neogql.OpRead | neogql.OpUpdate | neogql.OpConnect | neogql.OpDisconnect | neogql.OpDelete,
	KindBind:  neogql.OpCreate | neogql.OpUpdate | neogql.OpConnect | neogql.OpDisconnect | neogql.OpDelete,
}

// ValidFor reports whether the predicate kind applies to the operation.
func (k PredicateKind) ValidFor(op neogql.Op) bool {
	return kindOps[k].Is(op)
}

// Ops returns the full operation mask the predicate kind applies to.
func (k PredicateKind) Ops() neogql.Op {
	return kindOps[k]
}

// Predicate is one node in a recursive predicate tree. A leaf compares a
// field against a literal or a "$jwt." / "$context." claim reference; a
// relationship node nests a predicate under a relationship field name; AND
// and OR combine sub-trees. Predicates are plain data, never closures, so
// claim references can be resolved into parameter maps at render time.
type Predicate struct {
	// Field is the field name for leaf and relationship nodes.
	Field string

	// Value is the literal or claim reference compared against Field.
	Value any

	// Nested is set when Field names a relationship; the predicate then
	// applies to the related nodes.
	Nested *Predicate

	// And / Or combine sub-trees. A node carries at most one of the
	// leaf, relationship, And or Or forms.
	And []*Predicate
	Or  []*Predicate
}

// Rule is one entry of an @auth rules list. Within a rule, conditions
// combine with AND; across a rules list, evaluation is an OR in
// declaration order with the first matching rule winning.
type Rule struct {
	// Operations is the mask of operations the rule applies to.
	Operations neogql.Op

	// IsAuthenticated requires a non-nil claims object when set.
	IsAuthenticated bool

	// Roles matches when the claims role list intersects it (any one
	// role suffices).
	Roles []string

	// Allow, Where and Bind carry the rule's predicate tree; at most one
	// is set (enforced at schema-build time).
	Allow *Predicate
	Where *Predicate
	Bind  *Predicate

	// And and Or compose the non-relational conditions of nested rules:
	// every And entry must match, and at least one Or entry when present.
	And []Rule
	Or  []Rule
}

// Kind returns the predicate kind the rule carries, or zero when the rule
// has no predicate.
func (r *Rule) Kind() PredicateKind {
	switch {
	case r.Allow != nil:
		return KindAllow
	case r.Where != nil:
		return KindWhere
	case r.Bind != nil:
		return KindBind
	}
	return 0
}

// Predicate returns the rule's predicate tree, or nil.
func (r *Rule) Predicate() *Predicate {
	switch {
	case r.Allow != nil:
		return r.Allow
	case r.Where != nil:
		return r.Where
	case r.Bind != nil:
		return r.Bind
	}
	return nil
}

// Validate checks the rule's internal consistency: at most one predicate
// kind, and the kind valid for every operation the rule covers.
func (r *Rule) Validate() error {
	set := 0
	for _, p := range []*Predicate{r.Allow, r.Where, r.Bind} {
		if p != nil {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("auth: rule may carry only one of allow, where, bind")
	}
	kind := r.Kind()
	if kind == 0 {
		return nil
	}
	for _, op := range []neogql.Op{neogql.OpRead, neogql.OpCreate, neogql.OpUpdate, neogql.OpDelete, neogql.OpConnect, neogql.OpDisconnect} {
		if r.Operations.Is(op) && !kind.ValidFor(op) {
			return fmt.Errorf("auth: %s predicate is not valid for %s operations", kind, op)
		}
	}
	return nil
}
