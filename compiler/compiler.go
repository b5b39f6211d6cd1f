// Package compiler translates resolved GraphQL operations into single
// parameterized Cypher statements. Compilation is synchronous and pure:
// given the same schema model, operation and claims context it yields
// byte-identical statement text and parameters, which also makes
// memoization through the optional statement cache sound.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
	"github.com/neogql/neogql/dialect/cypher"
	"github.com/neogql/neogql/schema"
)

// forbiddenMsg is the message raised by generated apoc.util.validate
// calls; the execution adapter maps it back to a ForbiddenError.
const forbiddenMsg = neogql.ForbiddenMessage

// SortItem is one entry of an options.sort list.
type SortItem struct {
	Field string
	Desc  bool
}

// Options carries sort and pagination arguments. A nil pointer means the
// argument was absent.
type Options struct {
	Sort  []SortItem
	Limit *int
	Skip  *int
}

// Selection is one node of a resolved selection tree.
type Selection struct {
	Name     string
	Alias    string
	Where    map[string]any
	Options  *Options
	Children []Selection
}

// Key returns the projection key: the alias when present, the field name
// otherwise.
func (s *Selection) Key() string {
	if s.Alias != "" && s.Alias != s.Name {
		return s.Alias
	}
	return s.Name
}

// Arguments is the argument bag of one operation. Mutation arguments
// keyed by relationship field name (Create, Connect, Disconnect, Delete)
// follow the generated updateT/deleteT signatures.
type Arguments struct {
	Where   map[string]any
	Options *Options

	// Input is the create-input list of createT.
	Input []map[string]any

	// Update holds scalar updates of updateT.
	Update map[string]any

	// Create, Connect, Disconnect and Delete hold nested mutation input
	// keyed by relationship field name.
	Create     map[string]any
	Connect    map[string]any
	Disconnect map[string]any
	Delete     map[string]any

	// Params are free-form arguments of a custom @cypher operation.
	Params map[string]any
}

// Operation is one resolved GraphQL operation, created per request and
// consumed entirely within one compiler invocation.
type Operation struct {
	Kind neogql.Op
	Type string

	// CypherField names a custom @cypher Query/Mutation field; Type then
	// names the field's value type.
	CypherField string

	Args      Arguments
	Selection []Selection

	// Privileged marks the internal (OGM) path: @private fields are
	// visible and @exclude is bypassed. Authorization is never bypassed.
	Privileged bool
}

// Compiler compiles operations against one immutable schema model.
// It holds no per-request state and is safe for concurrent use.
type Compiler struct {
	model    *schema.Model
	engine   *auth.Engine
	cache    neogql.Cache
	log      logrus.FieldLogger
	maxDepth int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCache memoizes compiled statements in the given cache.
func WithCache(cache neogql.Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithLogger sets the logger for emitted-statement debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Compiler) { c.log = log }
}

// WithMaxDepth bounds nested selection and mutation-input traversal.
func WithMaxDepth(depth int) Option {
	return func(c *Compiler) { c.maxDepth = depth }
}

// New returns a Compiler over the given model and authorization engine.
func New(model *schema.Model, engine *auth.Engine, opts ...Option) *Compiler {
	c := &Compiler{model: model, engine: engine, maxDepth: neogql.DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		nop := logrus.New()
		nop.SetOutput(nopWriter{})
		c.log = nop
	}
	return c
}

// Compile translates one operation into a Cypher statement and parameter
// map. ctx is consulted only by the optional statement cache; compilation
// itself performs no blocking work.
func (c *Compiler) Compile(ctx context.Context, op *Operation, actx *auth.Context) (*neogql.Statement, error) {
	if c.cache != nil {
		key, err := c.cacheKey(op, actx)
		if err == nil {
			if stmt := c.cacheGet(ctx, key); stmt != nil {
				return stmt, nil
			}
			stmt, err := c.compile(op, actx)
			if err != nil {
				return nil, err
			}
			c.cachePut(ctx, key, stmt)
			return stmt, nil
		}
	}
	return c.compile(op, actx)
}

func (c *Compiler) compile(op *Operation, actx *auth.Context) (*neogql.Statement, error) {
	cc := &compileCtx{
		Compiler: c,
		b:        cypher.NewBuilder(),
		actx:     actx,
		op:       op,
	}
	var err error
	switch {
	case op.CypherField != "":
		err = cc.compileCypherRoot()
	case op.Kind == neogql.OpRead:
		err = cc.compileRead()
	case op.Kind == neogql.OpCreate:
		err = cc.compileCreate()
	case op.Kind == neogql.OpUpdate:
		err = cc.compileUpdate()
	case op.Kind == neogql.OpDelete:
		err = cc.compileDelete()
	default:
		err = neogql.NewValidationErrorf("operation", "unsupported operation kind %s", op.Kind)
	}
	if err != nil {
		return nil, err
	}
	stmt := &neogql.Statement{Cypher: cc.b.String(), Params: cc.b.Params()}
	c.log.WithFields(logrus.Fields{
		"op":   op.Kind.String(),
		"type": op.Type,
	}).Debug(stmt.Cypher)
	return stmt, nil
}

// compileCtx carries the per-invocation state threaded through the
// operation-specific compile methods.
type compileCtx struct {
	*Compiler
	b         *cypher.Builder
	actx      *auth.Context
	op        *Operation
	authBound bool
}

// rootType resolves the operation's root type.
func (cc *compileCtx) rootType() (*schema.Type, error) {
	t, ok := cc.model.Type(cc.op.Type)
	if !ok {
		return nil, neogql.NewValidationErrorf("type", "unknown type %q", cc.op.Type)
	}
	return t, nil
}

// authParam binds the $auth parameter on first use.
func (cc *compileCtx) authParam() string {
	if !cc.authBound {
		cc.b.Bind("auth", cc.actx.AuthParam(cc.engine.RolesPath()))
		cc.authBound = true
	}
	return "$auth"
}

// checkDepth enforces the traversal depth cap.
func (cc *compileCtx) checkDepth(depth int) error {
	if depth > cc.maxDepth {
		return neogql.NewValidationError("selection", neogql.ErrMaxDepth)
	}
	return nil
}

// cacheKey derives a deterministic key from everything compilation
// depends on. JSON encoding sorts map keys, making the key canonical.
func (c *Compiler) cacheKey(op *Operation, actx *auth.Context) (string, error) {
	payload := struct {
		Op     *Operation
		Claims auth.Claims
		Values map[string]any
	}{Op: op}
	if actx != nil {
		payload.Claims = actx.Claims
		payload.Values = actx.Values
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "neogql:stmt:" + hex.EncodeToString(sum[:]), nil
}

func (c *Compiler) cacheGet(ctx context.Context, key string) *neogql.Statement {
	data, err := c.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil
	}
	var stmt neogql.Statement
	if err := msgpack.Unmarshal(data, &stmt); err != nil {
		c.log.WithError(err).Debug("statement cache decode failed")
		return nil
	}
	return &stmt
}

func (c *Compiler) cachePut(ctx context.Context, key string, stmt *neogql.Statement) {
	data, err := msgpack.Marshal(stmt)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, 0); err != nil {
		c.log.WithError(err).Debug("statement cache store failed")
	}
}

// forbidden builds the ForbiddenError for a terminal deny.
func forbidden(t string, op neogql.Op) error {
	return neogql.NewForbiddenError(t, op, "")
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
