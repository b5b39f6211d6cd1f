// Package cypher provides a small, injection-safe Cypher statement builder.
// Clauses are assembled line by line and every user-supplied literal is
// registered as a named parameter; nothing user-controlled is ever
// interpolated into the statement text.
package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Direction is the direction of a relationship pattern.
type Direction string

const (
	DirectionOut        Direction = "OUT"
	DirectionIn         Direction = "IN"
	DirectionUndirected Direction = "UNDIRECTED"
)

// Valid reports whether d is one of the three recognized directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOut, DirectionIn, DirectionUndirected:
		return true
	}
	return false
}

// validNameRe matches plain identifiers that need no quoting.
var validNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Name quotes a label, relationship type or property name for safe use in
// a statement. Plain identifiers pass through backtick-quoted; embedded
// backticks are doubled.
func Name(s string) string {
	if validNameRe.MatchString(s) {
		return "`" + s + "`"
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Builder assembles a Cypher statement and its parameter map. Parameter
// keys are allocated deterministically: binding the same logical sequence
// of values always yields the same keys, so compiling an operation twice
// produces byte-identical output.
type Builder struct {
	lines  []string
	params map[string]any
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{params: make(map[string]any)}
}

// Bind registers a parameter value under the given key and returns the
// "$key" placeholder. If the key is already taken a numeric suffix is
// appended; allocation order is deterministic for a fixed call sequence.
func (b *Builder) Bind(key string, v any) string {
	k := key
	for i := 1; ; i++ {
		if _, ok := b.params[k]; !ok {
			break
		}
		k = fmt.Sprintf("%s%d", key, i)
	}
	b.params[k] = v
	return "$" + k
}

// Append adds one clause line to the statement.
func (b *Builder) Append(line string) {
	b.lines = append(b.lines, line)
}

// Appendf adds one formatted clause line to the statement. The format
// arguments must never contain user-supplied literals; use Bind for those.
func (b *Builder) Appendf(format string, a ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, a...))
}

// String returns the assembled statement.
func (b *Builder) String() string {
	return strings.Join(b.lines, "\n")
}

// Params returns the bound parameter map.
func (b *Builder) Params() map[string]any {
	return b.params
}

// ParamKeys returns the bound parameter keys in sorted order.
func (b *Builder) ParamKeys() []string {
	keys := make([]string, 0, len(b.params))
	for k := range b.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NodePattern renders a node pattern like (v:`Label`).
func NodePattern(varName, label string) string {
	if label == "" {
		return "(" + varName + ")"
	}
	return "(" + varName + ":" + Name(label) + ")"
}

// RelPattern renders a relationship pattern between two node patterns.
// The relVar may be empty when the relationship itself is not referenced.
func RelPattern(from string, relVar, relType string, dir Direction, to string) string {
	rel := "[" + relVar + ":" + Name(relType) + "]"
	switch dir {
	case DirectionIn:
		return from + "<-" + rel + "-" + to
	case DirectionUndirected:
		return from + "-" + rel + "-" + to
	default:
		return from + "-" + rel + "->" + to
	}
}

// Prop renders a property access expression like v.`name`.
func Prop(varName, prop string) string {
	return varName + "." + Name(prop)
}

// MapProjection renders a map projection like v { .id, posts: ... }.
func MapProjection(varName string, items []string) string {
	return varName + " { " + strings.Join(items, ", ") + " }"
}

// PatternComprehension renders [pattern WHERE cond | expr]. The where part
// is omitted when cond is empty.
func PatternComprehension(pattern, cond, expr string) string {
	if cond == "" {
		return "[" + pattern + " | " + expr + "]"
	}
	return "[" + pattern + " WHERE " + cond + " | " + expr + "]"
}
