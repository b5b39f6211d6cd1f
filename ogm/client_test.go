package ogm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
	"github.com/neogql/neogql/compiler"
	"github.com/neogql/neogql/schema"
)

const clientSDL = `
type User {
  id: ID! @autogenerate
  name: String!
  email: String @private
  posts: [Post!] @relationship(type: "HAS_POST", direction: OUT)
}

type Post {
  id: ID! @autogenerate
  title: String!
}
`

// fakeExecutor records compiled statements and plays back canned rows.
type fakeExecutor struct {
	readStmts  []*neogql.Statement
	writeStmts []*neogql.Statement

	rows    []map[string]any
	summary *neogql.WriteSummary
	err     error
}

func (f *fakeExecutor) Read(_ context.Context, stmt *neogql.Statement) ([]map[string]any, error) {
	f.readStmts = append(f.readStmts, stmt)
	return f.rows, f.err
}

func (f *fakeExecutor) Write(_ context.Context, stmt *neogql.Statement) ([]map[string]any, *neogql.WriteSummary, error) {
	f.writeStmts = append(f.writeStmts, stmt)
	return f.rows, f.summary, f.err
}

func newTestClient(t *testing.T, exec Executor) *Client {
	t.Helper()
	m, err := schema.Build(clientSDL)
	require.NoError(t, err)
	comp := compiler.New(m, auth.NewEngine(neogql.JWTConfig{}))
	return NewClient(m, comp, exec)
}

func TestClientFind(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{
		{"this": map[string]any{"id": "u1", "name": "alice"}},
		{"this": map[string]any{"id": "u2", "name": "bob"}},
	}}
	c := newTestClient(t, exec)

	got, err := c.Find(context.Background(), nil, Query{
		Type:  "User",
		Where: map[string]any{"name": "alice"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0]["name"])
	assert.Equal(t, "bob", got[1]["name"])

	require.Len(t, exec.readStmts, 1)
	assert.Contains(t, exec.readStmts[0].Cypher, "MATCH (this:`User`)")
	assert.Equal(t, "alice", exec.readStmts[0].Params["this_name"])
}

func TestClientFindSeesPrivateFields(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	c := newTestClient(t, exec)

	_, err := c.Find(context.Background(), nil, Query{
		Type:      "User",
		Selection: []compiler.Selection{{Name: "email"}},
	})
	require.NoError(t, err)
	assert.Contains(t, exec.readStmts[0].Cypher, ".`email`")
}

func TestClientFindOne(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{
		{"this": map[string]any{"id": "u1"}},
	}}
	c := newTestClient(t, exec)

	got, err := c.FindOne(context.Background(), nil, Query{Type: "User"})
	require.NoError(t, err)
	assert.Equal(t, "u1", got["id"])
	assert.Equal(t, 1, exec.readStmts[0].Params["limit"])

	exec.rows = nil
	got, err = c.FindOne(context.Background(), nil, Query{Type: "User"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClientFindManyOrder(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{
		{"this": map[string]any{"id": "x"}},
	}}
	c := newTestClient(t, exec)

	results, err := c.FindMany(context.Background(), nil,
		Query{Type: "User"},
		Query{Type: "Post"},
		Query{Type: "User"},
	)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, rows := range results {
		require.Len(t, rows, 1)
	}
}

func TestClientFindManyFailsFast(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &fakeExecutor{})

	_, err := c.FindMany(context.Background(), nil,
		Query{Type: "User"},
		Query{Type: "Ghost"},
	)
	require.Error(t, err)
	assert.True(t, neogql.IsValidationError(err))
}

func TestClientCreateFillsGeneratedIDs(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{
		{"data": []any{map[string]any{"id": "ignored"}}},
	}}
	c := newTestClient(t, exec)

	input := map[string]any{"name": "alice"}
	_, err := c.Create(context.Background(), nil, "User", input)
	require.NoError(t, err)

	require.Len(t, exec.writeStmts, 1)
	stmt := exec.writeStmts[0]
	// The ID travels as a bound parameter instead of a db-side default.
	assert.Contains(t, stmt.Cypher, "SET this0.`id` = $this0_id")
	id, ok := stmt.Params["this0_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	// The caller's input map stays untouched.
	_, present := input["id"]
	assert.False(t, present)
}

func TestClientCreateKeepsExplicitID(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{{"data": []any{}}}}
	c := newTestClient(t, exec)

	_, err := c.Create(context.Background(), nil, "User", map[string]any{"id": "fixed", "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", exec.writeStmts[0].Params["this0_id"])
}

func TestClientCreateReturnsData(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{
		{"data": []any{
			map[string]any{"id": "u1", "name": "alice"},
			map[string]any{"id": "u2", "name": "bob"},
		}},
	}}
	c := newTestClient(t, exec)

	got, err := c.Create(context.Background(), nil, "User",
		map[string]any{"name": "alice"}, map[string]any{"name": "bob"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0]["id"])
	assert.Equal(t, "u2", got[1]["id"])
}

func TestClientCreateUnknownType(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &fakeExecutor{})
	_, err := c.Create(context.Background(), nil, "Ghost", map[string]any{})
	require.Error(t, err)
	assert.True(t, neogql.IsValidationError(err))
}

func TestClientUpdate(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{rows: []map[string]any{
		{"this": map[string]any{"id": "u1", "name": "carol"}},
	}}
	c := newTestClient(t, exec)

	got, err := c.Update(context.Background(), nil, "User", Mutation{
		Where:  map[string]any{"id": "u1"},
		Update: map[string]any{"name": "carol"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0]["name"])
	assert.Contains(t, exec.writeStmts[0].Cypher, "SET this.`name` = $this_update_name")
}

func TestClientDelete(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{summary: &neogql.WriteSummary{NodesDeleted: 2, RelationshipsDeleted: 3}}
	c := newTestClient(t, exec)

	summary, err := c.Delete(context.Background(), nil, "User", map[string]any{"name": "alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NodesDeleted)
	assert.Equal(t, 3, summary.RelationshipsDeleted)
	assert.Contains(t, exec.writeStmts[0].Cypher, "DETACH DELETE this")
}

func TestClientExecutorErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	c := newTestClient(t, &fakeExecutor{err: boom})

	_, err := c.Find(context.Background(), nil, Query{Type: "User"})
	assert.ErrorIs(t, err, boom)

	_, err = c.Update(context.Background(), nil, "User", Mutation{Update: map[string]any{"name": "x"}})
	assert.ErrorIs(t, err, boom)
}
