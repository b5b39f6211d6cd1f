package graphql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/neogql/neogql/schema"
)

const genSDL = `
type User {
  id: ID! @autogenerate
  name: String!
  age: Int @default(value: 18)
  password: String @writeonly
  email: String @private
  active: Boolean
  posts: [Post!] @relationship(type: "HAS_POST", direction: OUT)
  initials: String @cypher(statement: "MATCH (this) RETURN left(this.name, 2)")
}

type Post {
  id: ID!
  title: String!
  author: User @relationship(type: "HAS_POST", direction: IN)
}

type AuditEntry @exclude(operations: ["create", "update", "delete"]) {
  id: ID!
  action: String
}

type Secret @exclude {
  id: ID!
}
`

func genModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.Build(genSDL)
	require.NoError(t, err)
	return m
}

func TestGenerateSDLIsValidSchema(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))
	_, err := gqlparser.LoadSchema(&ast.Source{Name: "generated", Input: sdl})
	require.Nil(t, err, "generated SDL must parse and validate: %s", sdl)
}

func TestGenerateSDLObjectTypes(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))

	start := strings.Index(sdl, "type User {")
	require.GreaterOrEqual(t, start, 0)
	userType := sdl[start : start+strings.Index(sdl[start:], "}")]

	assert.Contains(t, userType, "  name: String!")
	assert.Contains(t, userType, "  posts(where: PostWhere, options: PostOptions): [Post!]")
	assert.Contains(t, userType, "  initials: String")

	// Write-only and private fields never appear on output types; private
	// fields are absent from the whole public surface.
	assert.NotContains(t, userType, "password")
	assert.NotContains(t, sdl, "email")
}

func TestGenerateSDLWhereInput(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))

	assert.Contains(t, sdl, "input UserWhere {")
	assert.Contains(t, sdl, "  AND: [UserWhere!]")
	assert.Contains(t, sdl, "  OR: [UserWhere!]")
	assert.Contains(t, sdl, "  name_starts_with: String")
	assert.Contains(t, sdl, "  age_gte: Int")
	assert.Contains(t, sdl, "  posts: PostWhere")
	assert.Contains(t, sdl, "  posts_none: PostWhere")

	// Booleans only filter on equality.
	assert.Contains(t, sdl, "  active_not: Boolean")
	assert.NotContains(t, sdl, "active_in")
	// String comparison operators stop at containment.
	assert.NotContains(t, sdl, "name_gt")
}

func TestGenerateSDLOptionsAndSort(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))

	assert.Contains(t, sdl, "enum UserSort {")
	assert.Contains(t, sdl, "  name_asc")
	assert.Contains(t, sdl, "  name_desc")
	assert.Contains(t, sdl, "input UserOptions {")
	assert.Contains(t, sdl, "  sort: [UserSort!]")
	assert.Contains(t, sdl, "  limit: Int")
	assert.Contains(t, sdl, "  skip: Int")

	// Computed and relationship fields are not sortable.
	assert.NotContains(t, sdl, "initials_asc")
	assert.NotContains(t, sdl, "posts_asc")
}

func TestGenerateSDLMutationInputs(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))

	assert.Contains(t, sdl, "input UserCreateInput {")
	assert.Contains(t, sdl, "  name: String!")
	// Autogenerated and defaulted fields stay optional in create input.
	assert.Contains(t, sdl, "  id: ID\n")
	assert.Contains(t, sdl, "  age: Int\n")
	assert.Contains(t, sdl, "  posts: PostRelationInput")

	assert.Contains(t, sdl, "input UserUpdateInput {")
	assert.Contains(t, sdl, "input PostRelationInput {")
	assert.Contains(t, sdl, "  create: [PostCreateInput!]")
	assert.Contains(t, sdl, "  connect: [PostConnectWhere!]")
	assert.Contains(t, sdl, "input PostConnectWhere {")
	assert.Contains(t, sdl, "input UserConnectInput {")
	assert.Contains(t, sdl, "input UserDisconnectInput {")
	assert.Contains(t, sdl, "input UserDeleteInput {")
}

func TestGenerateSDLRoots(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))

	assert.Contains(t, sdl, "type Query {")
	assert.Contains(t, sdl, "  users(where: UserWhere, options: UserOptions): [User!]!")
	assert.Contains(t, sdl, "  posts(where: PostWhere, options: PostOptions): [Post!]!")

	assert.Contains(t, sdl, "type Mutation {")
	assert.Contains(t, sdl, "  createUser(input: [UserCreateInput!]!): [User!]!")
	assert.Contains(t, sdl, "  updateUser(where: UserWhere, update: UserUpdateInput, create: UserRelationCreateInput, connect: UserConnectInput, disconnect: UserDisconnectInput, delete: UserDeleteInput): [User!]!")
	assert.Contains(t, sdl, "  deleteUser(where: UserWhere, delete: UserDeleteInput): [User!]!")
}

func TestGenerateSDLExclusions(t *testing.T) {
	t.Parallel()
	sdl := GenerateSDL(genModel(t))

	// Partially excluded: readable, not mutable.
	assert.Contains(t, sdl, "  auditEntries(where: AuditEntryWhere, options: AuditEntryOptions): [AuditEntry!]!")
	assert.NotContains(t, sdl, "createAuditEntry")
	assert.NotContains(t, sdl, "updateAuditEntry")
	assert.NotContains(t, sdl, "deleteAuditEntry")

	// Fully excluded: no root fields at all.
	assert.NotContains(t, sdl, "secrets(")
	assert.NotContains(t, sdl, "createSecret")
}

func TestNamingHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "users", QueryFieldName("User"))
	assert.Equal(t, "people", QueryFieldName("Person"))
	assert.Equal(t, "createUser", CreateFieldName("User"))
	assert.Equal(t, "updatePerson", UpdateFieldName("Person"))
	assert.Equal(t, "deletePost", DeleteFieldName("Post"))

	field, desc, ok := parseSortValue("createdAt_desc")
	require.True(t, ok)
	assert.Equal(t, "createdAt", field)
	assert.True(t, desc)

	field, desc, ok = parseSortValue("name_asc")
	require.True(t, ok)
	assert.Equal(t, "name", field)
	assert.False(t, desc)

	_, _, ok = parseSortValue("name")
	assert.False(t, ok)
}
