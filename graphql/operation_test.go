package graphql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/schema"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(genModel(t))
}

func TestResolveReadOperation(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`
		query Users($minAge: Int) {
			users(where: { age_gte: $minAge }, options: { sort: [name_asc], limit: 10 }) {
				id
				fullName: name
				posts(where: { title_contains: "go" }) {
					title
				}
			}
		}
	`, map[string]any{"minAge": 21}, "")
	require.NoError(t, err)

	assert.Equal(t, neogql.OpRead, op.Kind)
	assert.Equal(t, "User", op.Type)
	assert.EqualValues(t, 21, op.Args.Where["age_gte"])
	require.NotNil(t, op.Args.Options)
	require.Len(t, op.Args.Options.Sort, 1)
	assert.Equal(t, "name", op.Args.Options.Sort[0].Field)
	assert.False(t, op.Args.Options.Sort[0].Desc)
	require.NotNil(t, op.Args.Options.Limit)
	assert.Equal(t, 10, *op.Args.Options.Limit)

	require.Len(t, op.Selection, 3)
	assert.Equal(t, "id", op.Selection[0].Name)
	assert.Equal(t, "name", op.Selection[1].Name)
	assert.Equal(t, "fullName", op.Selection[1].Alias)
	assert.Equal(t, "posts", op.Selection[2].Name)
	assert.Equal(t, "go", op.Selection[2].Where["title_contains"])
	require.Len(t, op.Selection[2].Children, 1)
	assert.Equal(t, "title", op.Selection[2].Children[0].Name)
}

func TestResolveCreateOperation(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`
		mutation {
			createUser(input: [{ name: "alice" }, { name: "bob" }]) {
				id
			}
		}
	`, nil, "")
	require.NoError(t, err)

	assert.Equal(t, neogql.OpCreate, op.Kind)
	assert.Equal(t, "User", op.Type)
	require.Len(t, op.Args.Input, 2)
	assert.Equal(t, "alice", op.Args.Input[0]["name"])
	assert.Equal(t, "bob", op.Args.Input[1]["name"])
}

func TestResolveCreateSingleInputObject(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`
		mutation {
			createUser(input: { name: "alice" }) { id }
		}
	`, nil, "")
	require.NoError(t, err)
	require.Len(t, op.Args.Input, 1)
	assert.Equal(t, "alice", op.Args.Input[0]["name"])
}

func TestResolveUpdateOperation(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`
		mutation {
			updateUser(
				where: { id: "u1" }
				update: { name: "carol" }
				connect: { posts: [{ where: { title: "a" } }] }
				disconnect: { posts: [{ where: { title: "b" } }] }
			) { id }
		}
	`, nil, "")
	require.NoError(t, err)

	assert.Equal(t, neogql.OpUpdate, op.Kind)
	assert.Equal(t, "u1", op.Args.Where["id"])
	assert.Equal(t, "carol", op.Args.Update["name"])
	assert.Contains(t, op.Args.Connect, "posts")
	assert.Contains(t, op.Args.Disconnect, "posts")
}

func TestResolveDeleteOperation(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`
		mutation { deleteUser(where: { id: "u1" }) { id } }
	`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, neogql.OpDelete, op.Kind)
	assert.Equal(t, "u1", op.Args.Where["id"])
}

func TestResolveFragments(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`
		query {
			users {
				...UserParts
				... on User { age }
			}
		}
		fragment UserParts on User {
			id
			name
		}
	`, nil, "")
	require.NoError(t, err)

	names := make([]string, 0, len(op.Selection))
	for _, s := range op.Selection {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"id", "name", "age"}, names)
}

func TestResolveTypenameSkipped(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	op, err := r.ResolveOperation(`query { users { __typename id } }`, nil, "")
	require.NoError(t, err)
	require.Len(t, op.Selection, 1)
	assert.Equal(t, "id", op.Selection[0].Name)
}

func TestResolveOperationName(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	doc := `
		query A { users { id } }
		query B { posts { id } }
	`
	op, err := r.ResolveOperation(doc, nil, "B")
	require.NoError(t, err)
	assert.Equal(t, "Post", op.Type)

	_, err = r.ResolveOperation(doc, nil, "C")
	require.Error(t, err)
	assert.True(t, neogql.IsValidationError(err))
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)
	tests := []struct {
		name  string
		query string
	}{
		{"syntax error", `query { users { id `},
		{"multiple root fields", `query { users { id } posts { id } }`},
		{"unknown query field", `query { ghosts { id } }`},
		{"unknown mutation field", `mutation { createGhost(input: []) { id } }`},
		{"mutation name on query root", `query { createUser(input: []) { id } }`},
		{"negative limit", `query { users(options: { limit: -1 }) { id } }`},
		{"unknown options field", `query { users(options: { offset: 2 }) { id } }`},
		{"malformed sort value", `query { users(options: { sort: ["name"] }) { id } }`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.ResolveOperation(tt.query, nil, "")
			require.Error(t, err)
			assert.True(t, neogql.IsValidationError(err), "got %v", err)
		})
	}
}

func TestResolveExcludedOperations(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)

	// AuditEntry is readable but its mutations are excluded.
	_, err := r.ResolveOperation(`query { auditEntries { id } }`, nil, "")
	require.NoError(t, err)

	_, err = r.ResolveOperation(`mutation { createAuditEntry(input: [{}]) { id } }`, nil, "")
	require.Error(t, err)
	assert.True(t, neogql.IsValidationError(err))

	// Secret is excluded entirely, so even reads resolve as unknown.
	_, err = r.ResolveOperation(`query { secrets { id } }`, nil, "")
	require.Error(t, err)
	assert.True(t, neogql.IsValidationError(err))
}

func TestResolveCustomCypherField(t *testing.T) {
	t.Parallel()
	m, err := schema.Build(`
type User { id: ID! name: String }
type Query {
  topUsers(limitArg: Int): [User] @cypher(statement: "MATCH (u:User) RETURN u LIMIT 10")
}
type Mutation {
  touchUser(id: ID!): User @cypher(statement: "MATCH (u:User {id: $id}) SET u.touched = true RETURN u")
}
`)
	require.NoError(t, err)
	r := NewResolver(m)

	op, err := r.ResolveOperation(`query { topUsers(limitArg: 5) { id name } }`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, neogql.OpRead, op.Kind)
	assert.Equal(t, "topUsers", op.CypherField)
	assert.Equal(t, "User", op.Type)
	assert.EqualValues(t, 5, op.Args.Params["limitArg"])
	require.Len(t, op.Selection, 2)

	op, err = r.ResolveOperation(`mutation { touchUser(id: "u1") { id } }`, nil, "")
	require.NoError(t, err)
	assert.Equal(t, neogql.OpUpdate, op.Kind)
	assert.Equal(t, "touchUser", op.CypherField)
	assert.Equal(t, "u1", op.Args.Params["id"])
}
