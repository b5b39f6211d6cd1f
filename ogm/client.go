// Package ogm is the programmatic client over the compiler: a thin
// object-graph mapper for application code that bypasses the public
// GraphQL surface. Operations run privileged, so @private fields are
// readable and @exclude does not apply; authorization rules still do.
package ogm

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
	"github.com/neogql/neogql/compiler"
	"github.com/neogql/neogql/schema"
)

// Executor runs compiled statements. *neo4j.Executor satisfies it.
type Executor interface {
	Read(ctx context.Context, stmt *neogql.Statement) ([]map[string]any, error)
	Write(ctx context.Context, stmt *neogql.Statement) ([]map[string]any, *neogql.WriteSummary, error)
}

// Client compiles and executes operations for one model. Safe for
// concurrent use.
type Client struct {
	model    *schema.Model
	compiler *compiler.Compiler
	exec     Executor
	log      logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient wires a client from its parts.
func NewClient(model *schema.Model, comp *compiler.Compiler, exec Executor, opts ...Option) *Client {
	c := &Client{model: model, compiler: comp, exec: exec, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query describes one find request.
type Query struct {
	Type    string
	Where   map[string]any
	Options *compiler.Options

	// Selection overrides the type's default selection when set.
	Selection []compiler.Selection
}

// Find returns the nodes of one type matching the query.
func (c *Client) Find(ctx context.Context, actx *auth.Context, q Query) ([]map[string]any, error) {
	op := &compiler.Operation{
		Kind:       neogql.OpRead,
		Type:       q.Type,
		Args:       compiler.Arguments{Where: q.Where, Options: q.Options},
		Selection:  q.Selection,
		Privileged: true,
	}
	stmt, err := c.compiler.Compile(ctx, op, actx)
	if err != nil {
		return nil, err
	}
	rows, err := c.exec.Read(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return columnValues(rows, "this"), nil
}

// FindOne returns the first match or nil.
func (c *Client) FindOne(ctx context.Context, actx *auth.Context, q Query) (map[string]any, error) {
	one := 1
	if q.Options == nil {
		q.Options = &compiler.Options{}
	}
	q.Options.Limit = &one
	rows, err := c.Find(ctx, actx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindMany runs several find requests concurrently, one result slice per
// request in input order. The first failure cancels the rest.
func (c *Client) FindMany(ctx context.Context, actx *auth.Context, qs ...Query) ([][]map[string]any, error) {
	results := make([][]map[string]any, len(qs))
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range qs {
		i, q := i, q
		g.Go(func() error {
			rows, err := c.Find(ctx, actx, q)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Create inserts the given input objects and returns their projections.
// Autogenerated ID fields absent from the input are filled client-side
// so callers know the new identifiers without re-reading.
func (c *Client) Create(ctx context.Context, actx *auth.Context, typeName string, inputs ...map[string]any) ([]map[string]any, error) {
	t, ok := c.model.Type(typeName)
	if !ok {
		return nil, neogql.NewValidationErrorf("type", "unknown type %q", typeName)
	}
	inputs = c.fillGeneratedIDs(t, inputs)
	op := &compiler.Operation{
		Kind:       neogql.OpCreate,
		Type:       typeName,
		Args:       compiler.Arguments{Input: inputs},
		Privileged: true,
	}
	stmt, err := c.compiler.Compile(ctx, op, actx)
	if err != nil {
		return nil, err
	}
	rows, _, err := c.exec.Write(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	data, _ := rows[0]["data"].([]any)
	out := make([]map[string]any, 0, len(data))
	for _, entry := range data {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Mutation describes the write portions of an update request.
type Mutation struct {
	Where      map[string]any
	Update     map[string]any
	Create     map[string]any
	Connect    map[string]any
	Disconnect map[string]any
	Delete     map[string]any
}

// Update applies a mutation to every matching node and returns the
// updated projections.
func (c *Client) Update(ctx context.Context, actx *auth.Context, typeName string, mut Mutation) ([]map[string]any, error) {
	op := &compiler.Operation{
		Kind: neogql.OpUpdate,
		Type: typeName,
		Args: compiler.Arguments{
			Where:      mut.Where,
			Update:     mut.Update,
			Create:     mut.Create,
			Connect:    mut.Connect,
			Disconnect: mut.Disconnect,
			Delete:     mut.Delete,
		},
		Privileged: true,
	}
	stmt, err := c.compiler.Compile(ctx, op, actx)
	if err != nil {
		return nil, err
	}
	rows, _, err := c.exec.Write(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return columnValues(rows, "this"), nil
}

// Delete removes every matching node, optionally cascading through the
// nested delete input, and returns the executor's write counters.
func (c *Client) Delete(ctx context.Context, actx *auth.Context, typeName string, where, nested map[string]any) (*neogql.WriteSummary, error) {
	op := &compiler.Operation{
		Kind:       neogql.OpDelete,
		Type:       typeName,
		Args:       compiler.Arguments{Where: where, Delete: nested},
		Privileged: true,
	}
	stmt, err := c.compiler.Compile(ctx, op, actx)
	if err != nil {
		return nil, err
	}
	_, summary, err := c.exec.Write(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// fillGeneratedIDs copies the inputs, assigning a fresh UUID to every
// absent @autogenerate ID field. Nested create input is left to the
// database-side default.
func (c *Client) fillGeneratedIDs(t *schema.Type, inputs []map[string]any) []map[string]any {
	var idFields []string
	for _, f := range t.Fields {
		if f.AutoGenerate != nil && f.Type == "ID" && f.AutoGenerate.Ops.Is(neogql.OpCreate) {
			idFields = append(idFields, f.Name)
		}
	}
	if len(idFields) == 0 {
		return inputs
	}
	out := make([]map[string]any, len(inputs))
	for i, input := range inputs {
		m := make(map[string]any, len(input)+1)
		for k, v := range input {
			m[k] = v
		}
		for _, name := range idFields {
			if _, ok := m[name]; !ok {
				m[name] = uuid.NewString()
			}
		}
		out[i] = m
	}
	return out
}

func columnValues(rows []map[string]any, column string) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if m, ok := row[column].(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
