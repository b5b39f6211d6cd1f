package auth

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/neogql/neogql"
)

// Decision is the outcome of evaluating a rules list for one operation.
type Decision struct {
	// Allow is false for a terminal deny; the operation fails with a
	// ForbiddenError and no statement is compiled.
	Allow bool

	// Kind and Predicate carry the matched rule's predicate tree for
	// downstream Cypher injection. Kind is zero for an unconditional
	// allow.
	Kind      PredicateKind
	Predicate *Predicate
}

// Unconditional reports an allow without an attached predicate.
func (d Decision) Unconditional() bool {
	return d.Allow && d.Predicate == nil
}

// Engine evaluates rules against request claims. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	cfg neogql.JWTConfig
	log logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for rule-evaluation debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns an Engine using the given JWT configuration.
func NewEngine(cfg neogql.JWTConfig, opts ...Option) *Engine {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		nop := logrus.New()
		nop.SetOutput(discard{})
		e.log = nop
	}
	return e
}

// RolesPath returns the configured claims path for the role list.
func (e *Engine) RolesPath() string {
	if e.cfg.RolesPath == "" {
		return DefaultRolesPath
	}
	return e.cfg.RolesPath
}

// Evaluate walks the rules attached to a type or field in declaration
// order and returns the decision for the given operation. Rules not
// covering the operation are ignored entirely; when none covers it the
// operation is unprotected. Otherwise the first rule whose
// isAuthenticated and roles conditions hold wins and contributes its
// predicate tree; if no rule matches the decision is a terminal deny.
func (e *Engine) Evaluate(rules []Rule, op neogql.Op, actx *Context) Decision {
	applicable := false
	for i := range rules {
		r := &rules[i]
		if !r.Operations.Is(op) {
			continue
		}
		applicable = true
		if !e.matches(r, actx) {
			continue
		}
		// Built models never carry an invalid kind; hand-constructed
		// rules may.
		kind := r.Kind()
		if kind != 0 && !kind.ValidFor(op) {
			continue
		}
		e.log.WithFields(logrus.Fields{"op": op.String(), "rule": i}).Debug("auth rule matched")
		return Decision{Allow: true, Kind: kind, Predicate: r.Predicate()}
	}
	if !applicable {
		return Decision{Allow: true}
	}
	e.log.WithField("op", op.String()).Debug("no auth rule matched")
	return Decision{}
}

// matches evaluates the non-relational conditions of a single rule:
// isAuthenticated and roles. Predicate trees are left intact for the
// compiler since they compare database values, not in-memory ones.
func (e *Engine) matches(r *Rule, actx *Context) bool {
	if r.IsAuthenticated && !actx.Authenticated() {
		return false
	}
	if len(r.Roles) > 0 {
		held := actx.roles(e.RolesPath())
		if !slices.ContainsFunc(r.Roles, func(role string) bool {
			return slices.Contains(held, role)
		}) {
			return false
		}
	}
	for i := range r.And {
		if !e.matches(&r.And[i], actx) {
			return false
		}
	}
	if len(r.Or) > 0 {
		ok := false
		for i := range r.Or {
			if e.matches(&r.Or[i], actx) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
