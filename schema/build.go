package schema

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/neogql/neogql"
)

// directiveDefs declares the recognized directives and auxiliary scalars so
// that annotated user documents validate. It is prepended to every SDL
// source handed to Build.
const directiveDefs = `
enum _RelationshipDirection { OUT IN UNDIRECTED }
scalar _Any
scalar DateTime
scalar Date
scalar Time
scalar LocalTime
scalar LocalDateTime
scalar Duration
scalar Point
scalar CartesianPoint
directive @relationship(type: String!, direction: _RelationshipDirection!) on FIELD_DEFINITION
directive @cypher(statement: String!) on FIELD_DEFINITION
directive @auth(rules: [_Any!]!) repeatable on OBJECT | FIELD_DEFINITION
directive @exclude(operations: _Any) on OBJECT
directive @private on FIELD_DEFINITION
directive @autogenerate(operations: [String!]) on FIELD_DEFINITION
directive @default(value: _Any!) on FIELD_DEFINITION
directive @coalesce(value: _Any!) on FIELD_DEFINITION
directive @readonly on FIELD_DEFINITION
directive @writeonly on FIELD_DEFINITION
directive @ignore on FIELD_DEFINITION
`

var temporalTypes = map[string]bool{
	"DateTime":      true,
	"Date":          true,
	"Time":          true,
	"LocalTime":     true,
	"LocalDateTime": true,
	"Duration":      true,
}

var spatialTypes = map[string]bool{
	"Point":          true,
	"CartesianPoint": true,
}

var builtinScalars = map[string]bool{
	"ID":      true,
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"_Any":    true,
}

// Builder options.
type BuildOption func(*builder)

// WithLogger sets the logger used during schema construction.
func WithLogger(log logrus.FieldLogger) BuildOption {
	return func(b *builder) { b.log = log }
}

type builder struct {
	log logrus.FieldLogger
}

// Build parses an annotated SDL document and constructs the graph model.
// All directive validation happens here; a returned error is fatal to
// schema construction and must prevent server startup.
func Build(sdl string, opts ...BuildOption) (*Model, error) {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		nop := logrus.New()
		nop.SetOutput(nopWriter{})
		b.log = nop
	}
	doc, err := gqlparser.LoadSchema(
		&ast.Source{Name: "neogql/directives", Input: directiveDefs, BuiltIn: true},
		&ast.Source{Name: "schema", Input: sdl},
	)
	if err != nil {
		return nil, neogql.NewSchemaError("", "", "parsing SDL: %v", err)
	}
	return b.build(doc)
}

// build assembles the model from a parsed schema in two passes: first all
// type shells with their fields, then relationship resolution, so that
// forward references and cycles are legal.
func (b *builder) build(doc *ast.Schema) (*Model, error) {
	m := &Model{
		types:          make(map[string]*Type),
		queryFields:    make(map[string]*Field),
		mutationFields: make(map[string]*Field),
	}

	enums := make(map[string]bool)
	for _, def := range doc.Types {
		if def.Kind == ast.Enum && !def.BuiltIn {
			enums[def.Name] = true
		}
	}

	var defs []*ast.Definition
	var roots []*ast.Definition
	for _, name := range sortedTypeNames(doc) {
		def := doc.Types[name]
		if def.BuiltIn || def.Kind != ast.Object {
			continue
		}
		if isOperationRoot(def.Name) {
			roots = append(roots, def)
			continue
		}
		defs = append(defs, def)
	}

	for _, def := range defs {
		t, err := b.buildType(def, enums)
		if err != nil {
			return nil, err
		}
		m.types[t.Name] = t
		m.order = append(m.order, t.Name)
	}

	for _, t := range m.Types() {
		if err := b.resolveRelationships(m, t); err != nil {
			return nil, err
		}
		t.DefaultSelection = defaultSelection(t)
	}

	// Custom @cypher fields on the operation roots become standalone
	// operations; anything else on the roots is application-resolved.
	for _, def := range roots {
		for _, fd := range def.Fields {
			f, err := b.buildField(def.Name, fd, enums)
			if err != nil {
				return nil, err
			}
			if f.Kind != KindCypher {
				continue
			}
			if def.Name == "Query" {
				m.queryFields[f.Name] = f
			} else if def.Name == "Mutation" {
				m.mutationFields[f.Name] = f
			}
		}
	}
	b.log.WithField("types", len(m.order)).Debug("schema model built")
	return m, nil
}

func (b *builder) buildType(def *ast.Definition, enums map[string]bool) (*Type, error) {
	td, err := parseDirectives(def.Name, "", def.Directives)
	if err != nil {
		return nil, err
	}
	t := &Type{
		Name:      def.Name,
		AuthRules: td.authRules,
		Exclude:   td.exclude,
		fields:    make(map[string]*Field),
	}
	for _, fd := range def.Fields {
		f, err := b.buildField(def.Name, fd, enums)
		if err != nil {
			return nil, err
		}
		if _, dup := t.fields[f.Name]; dup {
			return nil, neogql.NewSchemaError(def.Name, f.Name, "duplicate field")
		}
		t.Fields = append(t.Fields, f)
		t.fields[f.Name] = f
	}
	return t, nil
}

func (b *builder) buildField(typeName string, fd *ast.FieldDefinition, enums map[string]bool) (*Field, error) {
	d, err := parseDirectives(typeName, fd.Name, fd.Directives)
	if err != nil {
		return nil, err
	}
	named, list := unwrapType(fd.Type)
	f := &Field{
		Name:      fd.Name,
		Type:      named,
		NonNull:   fd.Type.NonNull,
		List:      list,
		Private:   d.private,
		ReadOnly:  d.readOnly,
		WriteOnly: d.writeOnly,
		Ignore:    d.ignore,
		AuthRules: d.authRules,
	}
	switch {
	case d.hasCypher:
		f.Kind = KindCypher
		f.CypherStmt = d.cypherStmt
	case d.hasRel:
		f.Kind = KindRelationship
		// Resolved against the full model in a second pass.
		f.Rel = &Relationship{Type: d.relType, Direction: d.relDirection, Many: list}
	case builtinScalars[named] || enums[named]:
		f.Kind = KindScalar
	case temporalTypes[named]:
		f.Kind = KindTemporal
	case spatialTypes[named]:
		f.Kind = KindSpatial
	default:
		// Object-typed field without @relationship or @cypher: resolved
		// by application code, invisible to the compiler.
		f.Kind = KindCustom
	}

	if d.hasDefault {
		if err := checkValueType(f, d.defaultVal); err != nil {
			return nil, neogql.NewSchemaError(typeName, fd.Name, "@default %v", err)
		}
		f.HasDefault = true
		f.Default = d.defaultVal
	}
	if d.hasCoalesce {
		if err := checkValueType(f, d.coalesceVal); err != nil {
			return nil, neogql.NewSchemaError(typeName, fd.Name, "@coalesce %v", err)
		}
		f.HasCoalesce = true
		f.Coalesce = d.coalesceVal
	}
	if d.hasAutoGen {
		if f.Type != "ID" && f.Kind != KindTemporal {
			return nil, neogql.NewSchemaError(typeName, fd.Name, "@autogenerate applies only to ID and temporal fields, not %s", f.Type)
		}
		f.AutoGenerate = d.autoGen
	}
	return f, nil
}

// resolveRelationships binds every relationship field to its declared
// target type. Dangling targets are a build-time error.
func (b *builder) resolveRelationships(m *Model, t *Type) error {
	for _, f := range t.Fields {
		if f.Kind != KindRelationship {
			continue
		}
		target, ok := m.Type(f.Type)
		if !ok {
			return neogql.NewSchemaError(t.Name, f.Name, "relationship target %q is not a declared type", f.Type)
		}
		f.Rel.Source = t
		f.Rel.Target = target
	}
	return nil
}

// defaultSelection computes the ordered projection used when a caller
// supplies no explicit selection: stored fields only, never relationship
// or @cypher traversals.
func defaultSelection(t *Type) []string {
	var names []string
	for _, f := range t.Fields {
		if !f.Kind.Stored() || f.WriteOnly || f.Ignore {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// unwrapType returns the named type and whether it is list-shaped.
func unwrapType(t *ast.Type) (string, bool) {
	if t.NamedType != "" {
		return t.NamedType, false
	}
	named, _ := unwrapType(t.Elem)
	return named, true
}

// checkValueType verifies a @default/@coalesce literal against the field's
// declared scalar type.
func checkValueType(f *Field, v any) error {
	switch f.Type {
	case "ID", "String":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("value %v does not match %s", v, f.Type)
		}
	case "Int":
		switch v.(type) {
		case int, int64:
		default:
			return fmt.Errorf("value %v does not match Int", v)
		}
	case "Float":
		switch v.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("value %v does not match Float", v)
		}
	case "Boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("value %v does not match Boolean", v)
		}
	default:
		if f.Kind == KindTemporal {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("value %v does not match %s", v, f.Type)
			}
		}
	}
	return nil
}

// isOperationRoot reports whether the type is one of the operation roots.
func isOperationRoot(name string) bool {
	return name == "Query" || name == "Mutation" || name == "Subscription"
}

func sortedTypeNames(doc *ast.Schema) []string {
	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	// doc.Types is a map; position info restores declaration order.
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := doc.Types[names[i]].Position, doc.Types[names[j]].Position
		li, lj := 0, 0
		if pi != nil {
			li = pi.Line
		}
		if pj != nil {
			lj = pj.Line
		}
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
	return names
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
