// Package schema builds the immutable graph model consumed by the
// compiler. The model is produced once from an annotated SDL document:
// directives are parsed and validated, every @relationship is resolved
// into a typed edge between declared types, and each type's default
// selection set is precomputed. The model is read-only after Build and
// safe for unlimited concurrent readers.
package schema

import (
	"github.com/neogql/neogql"
	"github.com/neogql/neogql/auth"
	"github.com/neogql/neogql/dialect/cypher"
)

// Direction of a relationship as declared on its @relationship directive.
type Direction = cypher.Direction

const (
	DirectionOut        = cypher.DirectionOut
	DirectionIn         = cypher.DirectionIn
	DirectionUndirected = cypher.DirectionUndirected
)

// FieldKind is the resolved semantic kind of a field. Directive
// combinations are folded into this closed set once at build time; all
// downstream components switch on it rather than re-inspecting directives.
type FieldKind uint8

const (
	KindScalar FieldKind = iota + 1
	KindTemporal
	KindSpatial
	KindRelationship
	KindCypher
	KindCustom // object-typed field resolved outside the compiler
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTemporal:
		return "temporal"
	case KindSpatial:
		return "spatial"
	case KindRelationship:
		return "relationship"
	case KindCypher:
		return "cypher"
	case KindCustom:
		return "custom"
	}
	return "unknown"
}

// Stored reports whether the field maps to a node property.
func (k FieldKind) Stored() bool {
	return k == KindScalar || k == KindTemporal || k == KindSpatial
}

// AutoGenerate is the policy of an @autogenerate field: a database-side
// UUID for ID fields, or a database timestamp for temporal fields gated
// by the operations mask.
type AutoGenerate struct {
	Ops neogql.Op
}

// Relationship describes a typed edge. The descriptor is owned once by
// the model and referenced by both endpoint types.
type Relationship struct {
	// Type is the relationship type label, e.g. "HAS_POST".
	Type string

	// Direction is OUT, IN or UNDIRECTED relative to the source.
	Direction Direction

	// Source and Target are the endpoint types.
	Source *Type
	Target *Type

	// Many is the cardinality, inferred from the list-ness of the field.
	Many bool
}

// Field describes one field of a node type.
type Field struct {
	Name    string
	Kind    FieldKind
	Type    string // GraphQL type name (String, Int, DateTime, Post, ...)
	NonNull bool
	List    bool

	// Visibility flags.
	Private   bool
	ReadOnly  bool
	WriteOnly bool
	Ignore    bool

	// HasDefault distinguishes an explicit null default from no default.
	HasDefault bool
	Default    any

	// HasCoalesce wraps reads of the property in coalesce(prop, Coalesce).
	HasCoalesce bool
	Coalesce    any

	AutoGenerate *AutoGenerate

	// CypherStmt is the statement of a @cypher field.
	CypherStmt string

	// Rel is set for KindRelationship fields.
	Rel *Relationship

	// AuthRules are the field-level @auth rules in declaration order.
	AuthRules []auth.Rule
}

// Writable reports whether the field accepts values in create or update
// input. ReadOnly fields accept values on create only.
func (f *Field) Writable(op neogql.Op) bool {
	if f.Ignore || !f.Kind.Stored() {
		return false
	}
	if f.ReadOnly && op != neogql.OpCreate {
		return false
	}
	return true
}

// Type describes one node type.
type Type struct {
	Name   string
	Fields []*Field

	// AuthRules are the type-level @auth rules in declaration order,
	// including rules contributed by type extensions.
	AuthRules []auth.Rule

	// Exclude is the mask of suppressed auto-generated operations.
	Exclude neogql.Op

	// DefaultSelection is the ordered list of stored field names used
	// when a caller supplies no explicit selection. It never includes
	// relationship, @cypher or custom-resolved fields.
	DefaultSelection []string

	fields map[string]*Field
}

// Field returns the named field.
func (t *Type) Field(name string) (*Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Excluded reports whether the operation is suppressed for this type in
// the generated public schema. Privileged (OGM) callers ignore this.
func (t *Type) Excluded(op neogql.Op) bool {
	return t.Exclude.Is(op)
}

// Model is the normalized in-memory graph model.
type Model struct {
	types map[string]*Type
	order []string

	// queryFields and mutationFields hold custom @cypher fields declared
	// on the Query and Mutation roots.
	queryFields    map[string]*Field
	mutationFields map[string]*Field
}

// QueryField returns the named custom @cypher Query field.
func (m *Model) QueryField(name string) (*Field, bool) {
	f, ok := m.queryFields[name]
	return f, ok
}

// MutationField returns the named custom @cypher Mutation field.
func (m *Model) MutationField(name string) (*Field, bool) {
	f, ok := m.mutationFields[name]
	return f, ok
}

// Type returns the named type.
func (m *Model) Type(name string) (*Type, bool) {
	t, ok := m.types[name]
	return t, ok
}

// Types returns all node types in declaration order.
func (m *Model) Types() []*Type {
	ts := make([]*Type, 0, len(m.order))
	for _, name := range m.order {
		ts = append(ts, m.types[name])
	}
	return ts
}
