package graphql

import (
	"fmt"
	"strings"

	"github.com/neogql/neogql"
	"github.com/neogql/neogql/schema"
)

// GenerateSDL renders the public executable schema for a model. Every
// non-excluded type contributes a plural query field and create, update
// and delete mutations together with the filter, options and input types
// they need. @private, @ignore and @writeonly fields never appear on
// output types; @exclude suppresses the named operations entirely.
func GenerateSDL(m *schema.Model) string {
	g := &sdlGen{m: m}
	return g.generate()
}

type sdlGen struct {
	m   *schema.Model
	buf strings.Builder
}

func (g *sdlGen) p(format string, a ...any) {
	fmt.Fprintf(&g.buf, format+"\n", a...)
}

func (g *sdlGen) generate() string {
	g.p("scalar DateTime")
	g.p("scalar Date")
	g.p("scalar Time")
	g.p("scalar LocalTime")
	g.p("scalar LocalDateTime")
	g.p("scalar Duration")
	g.p("scalar Point")
	g.p("scalar CartesianPoint")

	for _, t := range g.m.Types() {
		g.p("")
		g.objectType(t)
		g.whereInput(t)
		g.optionsInput(t)
		g.mutationInputs(t)
	}

	g.queryRoot()
	g.mutationRoot()
	return g.buf.String()
}

// visible reports whether the field appears anywhere in the public schema.
func visible(f *schema.Field) bool {
	return !f.Private && !f.Ignore
}

func (g *sdlGen) objectType(t *schema.Type) {
	g.p("type %s {", t.Name)
	for _, f := range t.Fields {
		if !visible(f) || f.WriteOnly {
			continue
		}
		switch f.Kind {
		case schema.KindRelationship:
			g.p("  %s(where: %s, options: %s): %s",
				f.Name, whereName(f.Rel.Target.Name), optionsName(f.Rel.Target.Name), renderType(f))
		default:
			g.p("  %s: %s", f.Name, renderType(f))
		}
	}
	g.p("}")
}

// whereInput renders the <T>Where filter input with per-type operator
// fields, relationship filters and AND/OR composition.
func (g *sdlGen) whereInput(t *schema.Type) {
	g.p("input %s {", whereName(t.Name))
	g.p("  AND: [%s!]", whereName(t.Name))
	g.p("  OR: [%s!]", whereName(t.Name))
	for _, f := range t.Fields {
		if !visible(f) || f.WriteOnly {
			continue
		}
		switch {
		case f.Kind == schema.KindRelationship:
			g.p("  %s: %s", f.Name, whereName(f.Rel.Target.Name))
			g.p("  %s_none: %s", f.Name, whereName(f.Rel.Target.Name))
		case f.Kind.Stored():
			g.filterFields(f)
		}
	}
	g.p("}")
}

func (g *sdlGen) filterFields(f *schema.Field) {
	typ := f.Type
	g.p("  %s: %s", f.Name, typ)
	g.p("  %s_not: %s", f.Name, typ)
	if typ == "Boolean" || f.Kind == schema.KindSpatial {
		return
	}
	g.p("  %s_in: [%s!]", f.Name, typ)
	g.p("  %s_not_in: [%s!]", f.Name, typ)
	if typ == "String" || typ == "ID" {
		g.p("  %s_contains: %s", f.Name, typ)
		g.p("  %s_not_contains: %s", f.Name, typ)
		g.p("  %s_starts_with: %s", f.Name, typ)
		g.p("  %s_not_starts_with: %s", f.Name, typ)
		g.p("  %s_ends_with: %s", f.Name, typ)
		g.p("  %s_not_ends_with: %s", f.Name, typ)
		return
	}
	g.p("  %s_lt: %s", f.Name, typ)
	g.p("  %s_lte: %s", f.Name, typ)
	g.p("  %s_gt: %s", f.Name, typ)
	g.p("  %s_gte: %s", f.Name, typ)
}

func (g *sdlGen) optionsInput(t *schema.Type) {
	var sortable []string
	for _, f := range t.Fields {
		if visible(f) && !f.WriteOnly && f.Kind.Stored() {
			sortable = append(sortable, f.Name)
		}
	}
	if len(sortable) > 0 {
		g.p("enum %s {", sortName(t.Name))
		for _, name := range sortable {
			g.p("  %s", sortValue(name, false))
			g.p("  %s", sortValue(name, true))
		}
		g.p("}")
	}
	g.p("input %s {", optionsName(t.Name))
	if len(sortable) > 0 {
		g.p("  sort: [%s!]", sortName(t.Name))
	}
	g.p("  limit: Int")
	g.p("  skip: Int")
	g.p("}")
}

// mutationInputs renders the create/update inputs and the nested
// relationship input types for one node type.
func (g *sdlGen) mutationInputs(t *schema.Type) {
	g.p("input %s {", createInputName(t.Name))
	for _, f := range t.Fields {
		if !visible(f) {
			continue
		}
		switch {
		case f.Kind == schema.KindRelationship:
			g.p("  %s: %s", f.Name, relationInputName(f.Rel.Target.Name))
		case f.Writable(neogql.OpCreate):
			typ := f.Type
			// Autogenerated and defaulted fields stay optional.
			if f.NonNull && f.AutoGenerate == nil && !f.HasDefault {
				typ += "!"
			}
			g.p("  %s: %s", f.Name, typ)
		}
	}
	g.p("}")

	g.p("input %s {", updateInputName(t.Name))
	for _, f := range t.Fields {
		if visible(f) && f.Writable(neogql.OpUpdate) {
			g.p("  %s: %s", f.Name, f.Type)
		}
	}
	g.p("}")

	g.p("input %s {", relationInputName(t.Name))
	g.p("  create: [%s!]", createInputName(t.Name))
	g.p("  connect: [%s!]", connectWhereName(t.Name))
	g.p("}")
	g.p("input %s {", connectWhereName(t.Name))
	g.p("  where: %s", whereName(t.Name))
	g.p("}")

	rels := relationshipFields(t)
	if len(rels) == 0 {
		return
	}
	g.relMap(connectInputName(t.Name), rels, func(f *schema.Field) string {
		return "[" + connectWhereName(f.Rel.Target.Name) + "!]"
	})
	g.relMap(disconnectInputName(t.Name), rels, func(f *schema.Field) string {
		return "[" + connectWhereName(f.Rel.Target.Name) + "!]"
	})
	g.relMap(relCreateInputName(t.Name), rels, func(f *schema.Field) string {
		return "[" + createInputName(f.Rel.Target.Name) + "!]"
	})
	g.relMap(deleteInputName(t.Name), rels, func(f *schema.Field) string {
		return "[" + connectWhereName(f.Rel.Target.Name) + "!]"
	})
}

func (g *sdlGen) relMap(name string, rels []*schema.Field, typ func(*schema.Field) string) {
	g.p("input %s {", name)
	for _, f := range rels {
		g.p("  %s: %s", f.Name, typ(f))
	}
	g.p("}")
}

func relationshipFields(t *schema.Type) []*schema.Field {
	var rels []*schema.Field
	for _, f := range t.Fields {
		if visible(f) && f.Kind == schema.KindRelationship {
			rels = append(rels, f)
		}
	}
	return rels
}

func (g *sdlGen) queryRoot() {
	var lines []string
	for _, t := range g.m.Types() {
		if t.Excluded(neogql.OpRead) {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s(where: %s, options: %s): [%s!]!",
			QueryFieldName(t.Name), whereName(t.Name), optionsName(t.Name), t.Name))
	}
	if len(lines) == 0 {
		return
	}
	g.p("")
	g.p("type Query {")
	for _, line := range lines {
		g.p("%s", line)
	}
	g.p("}")
}

func (g *sdlGen) mutationRoot() {
	var lines []string
	for _, t := range g.m.Types() {
		rels := relationshipFields(t)
		if !t.Excluded(neogql.OpCreate) {
			lines = append(lines, fmt.Sprintf("  %s(input: [%s!]!): [%s!]!",
				CreateFieldName(t.Name), createInputName(t.Name), t.Name))
		}
		if !t.Excluded(neogql.OpUpdate) {
			args := fmt.Sprintf("where: %s, update: %s", whereName(t.Name), updateInputName(t.Name))
			if len(rels) > 0 {
				args += fmt.Sprintf(", create: %s, connect: %s, disconnect: %s, delete: %s",
					relCreateInputName(t.Name), connectInputName(t.Name),
					disconnectInputName(t.Name), deleteInputName(t.Name))
			}
			lines = append(lines, fmt.Sprintf("  %s(%s): [%s!]!", UpdateFieldName(t.Name), args, t.Name))
		}
		if !t.Excluded(neogql.OpDelete) {
			args := fmt.Sprintf("where: %s", whereName(t.Name))
			if len(rels) > 0 {
				args += fmt.Sprintf(", delete: %s", deleteInputName(t.Name))
			}
			lines = append(lines, fmt.Sprintf("  %s(%s): [%s!]!", DeleteFieldName(t.Name), args, t.Name))
		}
	}
	if len(lines) == 0 {
		return
	}
	g.p("")
	g.p("type Mutation {")
	for _, line := range lines {
		g.p("%s", line)
	}
	g.p("}")
}

// renderType renders a field's GraphQL type reference.
func renderType(f *schema.Field) string {
	typ := f.Type
	if f.List {
		typ = "[" + typ + "!]"
	}
	if f.NonNull {
		typ += "!"
	}
	return typ
}
