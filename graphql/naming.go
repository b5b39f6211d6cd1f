// Package graphql derives the public GraphQL surface from the schema
// model: it generates the executable SDL with query and mutation fields,
// filter and options input types per node type, and resolves incoming
// GraphQL documents into compiler operations. @exclude and @private are
// enforced here; the compiler below this layer trusts its callers.
package graphql

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titler = cases.Title(language.English, cases.NoLower)

// lowerFirst downcases the first rune, leaving the rest untouched.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// QueryFieldName is the root query field for a type: User -> users.
func QueryFieldName(typeName string) string {
	return lowerFirst(inflect.Pluralize(typeName))
}

// Mutation field names: User -> createUser, updateUser, deleteUser.

func CreateFieldName(typeName string) string { return "create" + titler.String(typeName) }
func UpdateFieldName(typeName string) string { return "update" + titler.String(typeName) }
func DeleteFieldName(typeName string) string { return "delete" + titler.String(typeName) }

// Input and helper type names derived from a node type name.

func whereName(typeName string) string        { return typeName + "Where" }
func optionsName(typeName string) string      { return typeName + "Options" }
func sortName(typeName string) string         { return typeName + "Sort" }
func createInputName(typeName string) string  { return typeName + "CreateInput" }
func updateInputName(typeName string) string  { return typeName + "UpdateInput" }
func relationInputName(typeName string) string { return typeName + "RelationInput" }
func connectWhereName(typeName string) string { return typeName + "ConnectWhere" }
func connectInputName(typeName string) string { return typeName + "ConnectInput" }
func disconnectInputName(typeName string) string { return typeName + "DisconnectInput" }
func deleteInputName(typeName string) string  { return typeName + "DeleteInput" }
func relCreateInputName(typeName string) string { return typeName + "RelationCreateInput" }

// sortValue is one enum value of a <T>Sort enum: name_asc or name_desc.
func sortValue(field string, desc bool) string {
	if desc {
		return field + "_desc"
	}
	return field + "_asc"
}

// parseSortValue splits a <T>Sort enum value back into field and
// direction.
func parseSortValue(v string) (field string, desc, ok bool) {
	if f, found := strings.CutSuffix(v, "_desc"); found {
		return f, true, true
	}
	if f, found := strings.CutSuffix(v, "_asc"); found {
		return f, false, true
	}
	return "", false, false
}
