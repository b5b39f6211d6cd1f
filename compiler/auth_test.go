package compiler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
)

const authSDL = `
type Note @auth(rules: [
  { operations: ["read"], roles: ["admin"] },
  { operations: ["read"], isAuthenticated: true, where: { ownerId: "$jwt.sub" } },
  { operations: ["update"], bind: { ownerId: "$jwt.sub" } },
  { operations: ["delete"], isAuthenticated: true, allow: { ownerId: "$jwt.sub" } }
]) {
  id: ID! @autogenerate
  ownerId: ID
  body: String
}

type Vault @auth(rules: [
  { operations: ["read"], allow: { ownerId: "$jwt.sub" } }
]) {
  id: ID!
  ownerId: ID
  secret: String
}
`

func authedCtx(sub string, roles ...string) *auth.Context {
	claims := auth.Claims{"sub": sub}
	if len(roles) > 0 {
		rs := make([]any, len(roles))
		for i, r := range roles {
			rs[i] = r
		}
		claims["roles"] = rs
	}
	return &auth.Context{Claims: claims}
}

func TestAuthWherePredicateFilters(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, authSDL)
	stmt := compile(t, c, readOp("Note", nil, Selection{Name: "id"}), authedCtx("u1"))

	assert.Contains(t, stmt.Cypher, "WHERE this.`ownerId` = $this_auth_ownerId")
	assert.NotContains(t, stmt.Cypher, "apoc.util.validatePredicate")
	assert.Equal(t, "u1", stmt.Params["this_auth_ownerId"])
}

func TestAuthAdminRuleWinsByOrder(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, authSDL)
	stmt := compile(t, c, readOp("Note", nil, Selection{Name: "id"}), authedCtx("u1", "admin"))

	// The admin rule is unconditional, so no ownership filter is injected.
	assert.NotContains(t, stmt.Cypher, "ownerId")
	assert.NotContains(t, stmt.Cypher, "WHERE")
}

func TestAuthDenyIsTerminal(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, authSDL)
	_, err := c.Compile(context.Background(), readOp("Note", nil, Selection{Name: "id"}), nil)
	require.Error(t, err)
	assert.True(t, neogql.IsForbidden(err))
}

func TestAuthAllowPredicateRaises(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, authSDL)
	stmt := compile(t, c, readOp("Vault", nil, Selection{Name: "id"}), authedCtx("u1"))

	assert.Contains(t, stmt.Cypher,
		`apoc.util.validatePredicate(NOT (this.`+"`ownerId`"+` = $this_auth_ownerId), "neogql/auth: forbidden", [0])`)
}

func TestAuthMissingClaimDeniesTotally(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, authSDL)

	// The Vault allow rule has no isAuthenticated condition, so it matches
	// even without claims; the unresolvable $jwt.sub then renders as a
	// constant false and the validate call raises on every row.
	stmt := compile(t, c, readOp("Vault", nil, Selection{Name: "id"}), nil)
	assert.Contains(t, stmt.Cypher, `apoc.util.validatePredicate(NOT (false), "neogql/auth: forbidden", [0])`)
}

func TestAuthBindValidatesAfterWrite(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, authSDL)
	op := &Operation{
		Kind: neogql.OpUpdate,
		Type: "Note",
		Args: Arguments{
			Where:  map[string]any{"id": "n1"},
			Update: map[string]any{"body": "edited"},
		},
		Selection: []Selection{{Name: "id"}},
	}
	stmt := compile(t, c, op, authedCtx("u1"))

	setIdx := strings.Index(stmt.Cypher, "SET this.`body`")
	validateIdx := strings.Index(stmt.Cypher, `CALL apoc.util.validate(NOT (this.`+"`ownerId`"+` = $this_auth_ownerId), "neogql/auth: forbidden", [0])`)
	returnIdx := strings.Index(stmt.Cypher, "RETURN this")
	require.GreaterOrEqual(t, setIdx, 0)
	require.GreaterOrEqual(t, validateIdx, 0)
	assert.Less(t, setIdx, validateIdx, "bind validation must follow the write")
	assert.Less(t, validateIdx, returnIdx)
}

func TestAuthAppliesPerRelationshipHop(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, `
type User {
  id: ID!
  notes: [Note!] @relationship(type: "OWNS", direction: OUT)
}
type Note @auth(rules: [
  { operations: ["read"], isAuthenticated: true, where: { ownerId: "$jwt.sub" } }
]) {
  id: ID!
  ownerId: ID
}
`)
	op := readOp("User", nil,
		Selection{Name: "notes", Children: []Selection{{Name: "id"}}})

	stmt := compile(t, c, op, authedCtx("u1"))
	assert.Contains(t, stmt.Cypher, "WHERE this_notes.`ownerId` = $this_notes_auth_ownerId")

	_, err := c.Compile(context.Background(), op, nil)
	require.Error(t, err)
	assert.True(t, neogql.IsForbidden(err))
}

func TestAuthRelationshipPredicateQuantifiers(t *testing.T) {
	t.Parallel()
	sdl := `
type Doc @auth(rules: [
  { operations: ["read"], allow: { collaborators: { id: "$jwt.sub" } } },
  { operations: ["update"], bind: { collaborators: { id: "$jwt.sub" } } }
]) {
  id: ID!
  body: String
  collaborators: [Person!] @relationship(type: "COLLAB", direction: OUT)
}
type Person { id: ID! }
`
	c := newCompiler(t, sdl)

	stmt := compile(t, c, readOp("Doc", nil, Selection{Name: "id"}), authedCtx("u1"))
	assert.Contains(t, stmt.Cypher,
		"ANY(this_collaborators IN [(this)-[:`COLLAB`]->(this_collaborators:`Person`) | this_collaborators] WHERE this_collaborators.`id` = $this_collaborators_auth_id)")

	update := &Operation{
		Kind:      neogql.OpUpdate,
		Type:      "Doc",
		Args:      Arguments{Update: map[string]any{"body": "x"}},
		Selection: []Selection{{Name: "id"}},
	}
	stmt = compile(t, c, update, authedCtx("u1"))
	assert.Contains(t, stmt.Cypher, "ALL(this_collaborators IN")
}

const fieldAuthSDL = `
type Employee {
  id: ID!
  name: String
  managerId: ID
  salary: Int @auth(rules: [
    { operations: ["read"], isAuthenticated: true },
    { operations: ["create", "update"], isAuthenticated: true, bind: { managerId: "$jwt.sub" } }
  ])
}

type Review {
  id: ID!
  authorId: ID
  draft: String @auth(rules: [
    { operations: ["read"], where: { authorId: "$jwt.sub" } }
  ])
  rating: Int @auth(rules: [
    { operations: ["read"], allow: { authorId: "$jwt.sub" } }
  ])
}
`

func TestFieldAuthReadRequiresClaims(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, fieldAuthSDL)

	_, err := c.Compile(context.Background(), readOp("Employee", nil, Selection{Name: "salary"}), nil)
	require.Error(t, err)
	assert.True(t, neogql.IsForbidden(err))

	// Fields without rules stay readable without claims.
	stmt := compile(t, c, readOp("Employee", nil, Selection{Name: "name"}), nil)
	assert.Contains(t, stmt.Cypher, ".`name`")

	stmt = compile(t, c, readOp("Employee", nil, Selection{Name: "salary"}), authedCtx("u1"))
	assert.Contains(t, stmt.Cypher, "salary: this.`salary`")
}

func TestFieldAuthWherePredicateNullsValue(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, fieldAuthSDL)

	stmt := compile(t, c, readOp("Review", nil, Selection{Name: "id"}, Selection{Name: "draft"}), authedCtx("u1"))
	assert.Contains(t, stmt.Cypher,
		"draft: CASE WHEN this.`authorId` = $this_auth_authorId THEN this.`draft` ELSE NULL END")
	assert.Equal(t, "u1", stmt.Params["this_auth_authorId"])

	// An unresolvable claim reference nulls the value on every row.
	stmt = compile(t, c, readOp("Review", nil, Selection{Name: "draft"}), nil)
	assert.Contains(t, stmt.Cypher, "draft: CASE WHEN false THEN this.`draft` ELSE NULL END")
}

func TestFieldAuthAllowPredicateRaises(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, fieldAuthSDL)
	stmt := compile(t, c, readOp("Review", nil, Selection{Name: "rating"}), authedCtx("u1"))
	assert.Contains(t, stmt.Cypher,
		`rating: CASE WHEN apoc.util.validatePredicate(NOT (this.`+"`authorId`"+` = $this_auth_authorId), "neogql/auth: forbidden", [0]) THEN this.`+"`rating`"+` ELSE NULL END`)
}

func TestFieldAuthBindOnUpdate(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, fieldAuthSDL)
	op := &Operation{
		Kind: neogql.OpUpdate,
		Type: "Employee",
		Args: Arguments{
			Where:  map[string]any{"id": "e1"},
			Update: map[string]any{"salary": 90000},
		},
		Selection: []Selection{{Name: "id"}},
	}

	_, err := c.Compile(context.Background(), op, nil)
	require.Error(t, err)
	assert.True(t, neogql.IsForbidden(err))

	stmt := compile(t, c, op, authedCtx("u1"))
	setIdx := strings.Index(stmt.Cypher, "SET this.`salary`")
	validateIdx := strings.Index(stmt.Cypher, `CALL apoc.util.validate(NOT (this.`+"`managerId`"+` = $this_auth_managerId), "neogql/auth: forbidden", [0])`)
	require.GreaterOrEqual(t, setIdx, 0)
	require.GreaterOrEqual(t, validateIdx, 0)
	assert.Less(t, setIdx, validateIdx, "field bind validation must follow the write")

	// Updating only fields without rules triggers no field validation.
	op.Args.Update = map[string]any{"name": "sam"}
	stmt = compile(t, c, op, nil)
	assert.NotContains(t, stmt.Cypher, "apoc.util.validate")
}

func TestFieldAuthBindOnCreate(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, fieldAuthSDL)
	op := &Operation{
		Kind: neogql.OpCreate,
		Type: "Employee",
		Args: Arguments{Input: []map[string]any{{"name": "sam", "managerId": "u1", "salary": 90000}}},
	}

	_, err := c.Compile(context.Background(), op, nil)
	require.Error(t, err)
	assert.True(t, neogql.IsForbidden(err))

	stmt := compile(t, c, op, authedCtx("u1"))
	assert.Contains(t, stmt.Cypher,
		`CALL apoc.util.validate(NOT (this0.`+"`managerId`"+` = $this0_auth_managerId), "neogql/auth: forbidden", [0])`)
	assert.Equal(t, "u1", stmt.Params["this0_auth_managerId"])
}

func TestAuthParamBoundOnce(t *testing.T) {
	t.Parallel()
	c := newCompiler(t, testSDL)
	op := readOp("User", nil,
		Selection{Name: "initials"},
		Selection{Name: "initials", Alias: "monogram"},
	)
	stmt := compile(t, c, op, authedCtx("u1"))
	require.Contains(t, stmt.Params, "auth")
	assert.NotContains(t, stmt.Params, "auth1")
}
