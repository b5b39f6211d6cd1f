package graphql

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/compiler"
	"github.com/neogql/neogql/schema"
)

// Resolver turns parsed GraphQL documents into compiler operations. It is
// immutable after construction and safe for concurrent use.
type Resolver struct {
	m *schema.Model

	queries map[string]*schema.Type
	creates map[string]*schema.Type
	updates map[string]*schema.Type
	deletes map[string]*schema.Type
}

// NewResolver builds the generated-field lookup tables for a model.
func NewResolver(m *schema.Model) *Resolver {
	r := &Resolver{
		m:       m,
		queries: make(map[string]*schema.Type),
		creates: make(map[string]*schema.Type),
		updates: make(map[string]*schema.Type),
		deletes: make(map[string]*schema.Type),
	}
	for _, t := range m.Types() {
		r.queries[QueryFieldName(t.Name)] = t
		r.creates[CreateFieldName(t.Name)] = t
		r.updates[UpdateFieldName(t.Name)] = t
		r.deletes[DeleteFieldName(t.Name)] = t
	}
	return r
}

// ResolveOperation parses a GraphQL document and resolves the named
// operation (the only one when operationName is empty) into a compiler
// operation. Fields removed from the public schema by @exclude resolve
// the same as unknown fields.
func (r *Resolver) ResolveOperation(query string, variables map[string]any, operationName string) (*compiler.Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: query})
	if err != nil {
		return nil, neogql.NewValidationError("query", err)
	}
	def := doc.Operations.ForName(operationName)
	if def == nil {
		return nil, neogql.NewValidationErrorf("query", "operation %q not found", operationName)
	}
	fields := flattenSelections(doc, def.SelectionSet)
	if len(fields) != 1 {
		return nil, neogql.NewValidationErrorf("query", "exactly one root field is required, got %d", len(fields))
	}
	field := fields[0]
	args, err := argumentValues(field, variables)
	if err != nil {
		return nil, err
	}

	switch def.Operation {
	case ast.Query:
		if f, ok := r.m.QueryField(field.Name); ok {
			return r.cypherOperation(doc, field, f, neogql.OpRead, args, variables)
		}
		if t, ok := r.queries[field.Name]; ok && !t.Excluded(neogql.OpRead) {
			return r.readOperation(doc, field, t, args, variables)
		}
	case ast.Mutation:
		if f, ok := r.m.MutationField(field.Name); ok {
			return r.cypherOperation(doc, field, f, neogql.OpUpdate, args, variables)
		}
		if t, ok := r.creates[field.Name]; ok && !t.Excluded(neogql.OpCreate) {
			return r.createOperation(doc, field, t, args, variables)
		}
		if t, ok := r.updates[field.Name]; ok && !t.Excluded(neogql.OpUpdate) {
			return r.updateOperation(doc, field, t, args, variables)
		}
		if t, ok := r.deletes[field.Name]; ok && !t.Excluded(neogql.OpDelete) {
			return r.deleteOperation(doc, field, t, args, variables)
		}
	}
	return nil, neogql.NewValidationErrorf(field.Name, "unknown %s field", def.Operation)
}

func (r *Resolver) cypherOperation(doc *ast.QueryDocument, field *ast.Field, f *schema.Field, kind neogql.Op, args map[string]any, vars map[string]any) (*compiler.Operation, error) {
	sel, err := r.selections(doc, field.SelectionSet, vars)
	if err != nil {
		return nil, err
	}
	return &compiler.Operation{
		Kind:        kind,
		Type:        f.Type,
		CypherField: f.Name,
		Args:        compiler.Arguments{Params: args},
		Selection:   sel,
	}, nil
}

func (r *Resolver) readOperation(doc *ast.QueryDocument, field *ast.Field, t *schema.Type, args map[string]any, vars map[string]any) (*compiler.Operation, error) {
	a, err := baseArguments(t, args, "where", "options")
	if err != nil {
		return nil, err
	}
	sel, err := r.selections(doc, field.SelectionSet, vars)
	if err != nil {
		return nil, err
	}
	return &compiler.Operation{Kind: neogql.OpRead, Type: t.Name, Args: *a, Selection: sel}, nil
}

func (r *Resolver) createOperation(doc *ast.QueryDocument, field *ast.Field, t *schema.Type, args map[string]any, vars map[string]any) (*compiler.Operation, error) {
	a, err := baseArguments(t, args, "input")
	if err != nil {
		return nil, err
	}
	sel, err := r.selections(doc, field.SelectionSet, vars)
	if err != nil {
		return nil, err
	}
	return &compiler.Operation{Kind: neogql.OpCreate, Type: t.Name, Args: *a, Selection: sel}, nil
}

func (r *Resolver) updateOperation(doc *ast.QueryDocument, field *ast.Field, t *schema.Type, args map[string]any, vars map[string]any) (*compiler.Operation, error) {
	a, err := baseArguments(t, args, "where", "update", "create", "connect", "disconnect", "delete")
	if err != nil {
		return nil, err
	}
	sel, err := r.selections(doc, field.SelectionSet, vars)
	if err != nil {
		return nil, err
	}
	return &compiler.Operation{Kind: neogql.OpUpdate, Type: t.Name, Args: *a, Selection: sel}, nil
}

func (r *Resolver) deleteOperation(doc *ast.QueryDocument, field *ast.Field, t *schema.Type, args map[string]any, vars map[string]any) (*compiler.Operation, error) {
	a, err := baseArguments(t, args, "where", "delete")
	if err != nil {
		return nil, err
	}
	sel, err := r.selections(doc, field.SelectionSet, vars)
	if err != nil {
		return nil, err
	}
	return &compiler.Operation{Kind: neogql.OpDelete, Type: t.Name, Args: *a, Selection: sel}, nil
}

// baseArguments distributes resolved argument values onto the compiler
// argument bag, rejecting arguments outside the allowed set.
func baseArguments(t *schema.Type, args map[string]any, allowed ...string) (*compiler.Arguments, error) {
	ok := func(name string) bool {
		for _, a := range allowed {
			if a == name {
				return true
			}
		}
		return false
	}
	a := &compiler.Arguments{}
	for name, val := range args {
		if !ok(name) {
			return nil, neogql.NewValidationErrorf(name, "unknown argument on %s operation", t.Name)
		}
		var err error
		switch name {
		case "where":
			a.Where, err = asObject(name, val)
		case "options":
			a.Options, err = parseOptions(val)
		case "input":
			a.Input, err = asObjectList(name, val)
		case "update":
			a.Update, err = asObject(name, val)
		case "create":
			a.Create, err = asObject(name, val)
		case "connect":
			a.Connect, err = asObject(name, val)
		case "disconnect":
			a.Disconnect, err = asObject(name, val)
		case "delete":
			a.Delete, err = asObject(name, val)
		}
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// selections converts an AST selection set into the compiler's selection
// tree, flattening fragments and resolving argument values.
func (r *Resolver) selections(doc *ast.QueryDocument, set ast.SelectionSet, vars map[string]any) ([]compiler.Selection, error) {
	fields := flattenSelections(doc, set)
	out := make([]compiler.Selection, 0, len(fields))
	for _, f := range fields {
		if f.Name == "__typename" {
			continue
		}
		args, err := argumentValues(f, vars)
		if err != nil {
			return nil, err
		}
		s := compiler.Selection{Name: f.Name, Alias: f.Alias}
		if w, ok := args["where"]; ok {
			if s.Where, err = asObject("where", w); err != nil {
				return nil, err
			}
		}
		if o, ok := args["options"]; ok {
			if s.Options, err = parseOptions(o); err != nil {
				return nil, err
			}
		}
		if s.Children, err = r.selections(doc, f.SelectionSet, vars); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// flattenSelections expands fragment spreads and inline fragments into a
// flat field list. Unknown fragments are skipped; schema validation is
// out of scope here.
func flattenSelections(doc *ast.QueryDocument, set ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, flattenSelections(doc, s.SelectionSet)...)
		case *ast.FragmentSpread:
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				fields = append(fields, flattenSelections(doc, frag.SelectionSet)...)
			}
		}
	}
	return fields
}

// argumentValues resolves a field's arguments against the variable map.
func argumentValues(f *ast.Field, vars map[string]any) (map[string]any, error) {
	if len(f.Arguments) == 0 {
		return nil, nil
	}
	args := make(map[string]any, len(f.Arguments))
	for _, arg := range f.Arguments {
		val, err := arg.Value.Value(vars)
		if err != nil {
			return nil, neogql.NewValidationError(arg.Name, err)
		}
		args[arg.Name] = val
	}
	return args, nil
}

// parseOptions converts an options argument into compiler options. Sort
// entries are <T>Sort enum values of the form field_asc / field_desc.
func parseOptions(v any) (*compiler.Options, error) {
	if v == nil {
		return nil, nil
	}
	m, err := asObject("options", v)
	if err != nil {
		return nil, err
	}
	opts := &compiler.Options{}
	for key, val := range m {
		switch key {
		case "sort":
			for _, entry := range asInputList(val) {
				s, ok := entry.(string)
				if !ok {
					return nil, neogql.NewValidationErrorf("sort", "sort entries must be enum values")
				}
				field, desc, ok := parseSortValue(s)
				if !ok {
					return nil, neogql.NewValidationErrorf("sort", "malformed sort value %q", s)
				}
				opts.Sort = append(opts.Sort, compiler.SortItem{Field: field, Desc: desc})
			}
		case "limit":
			n, ok := asInt(val)
			if !ok || n < 0 {
				return nil, neogql.NewValidationErrorf("limit", "limit must be a non-negative integer")
			}
			opts.Limit = &n
		case "skip":
			n, ok := asInt(val)
			if !ok || n < 0 {
				return nil, neogql.NewValidationErrorf("skip", "skip must be a non-negative integer")
			}
			opts.Skip = &n
		default:
			return nil, neogql.NewValidationErrorf(key, "unknown options field")
		}
	}
	return opts, nil
}

func asObject(name string, v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, neogql.NewValidationErrorf(name, "expected an input object")
	}
	return m, nil
}

func asObjectList(name string, v any) ([]map[string]any, error) {
	var out []map[string]any
	for _, entry := range asInputList(v) {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, neogql.NewValidationErrorf(name, "expected input objects")
		}
		out = append(out, m)
	}
	return out, nil
}

// asInputList normalizes a value to a list; a single value stands for a
// one-element list.
func asInputList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return nil
	}
	return []any{v}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
