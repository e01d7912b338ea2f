package mcpgateway

import (
	"maps"
	"slices"
)

// Property is the JSON Schema object describing one tool parameter.
type Property map[string]any

// ToolSchema is the dialect-neutral shape of a tool's parameters.
type ToolSchema struct {
	Properties map[string]Property
	Required   []string
}

// JSONSchema renders the schema as a JSON Schema object.
func (s *ToolSchema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Properties))
	for name, prop := range s.Properties {
		properties[name] = map[string]any(prop)
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// IsRequired reports whether the named property is listed as required.
func (s *ToolSchema) IsRequired(name string) bool {
	return slices.Contains(s.Required, name)
}

// TypeKind classifies the value of a property's "type" keyword.
type TypeKind int

const (
	TypeMissing TypeKind = iota
	TypePrimitive
	TypeUnion
	TypeOther
)

// TypeDecl is the parsed "type" keyword of a property.
type TypeDecl struct {
	Kind      TypeKind
	Primitive string
	Union     []any
}

// ParseTypeDecl classifies a raw "type" value.
func ParseTypeDecl(v any) TypeDecl {
	switch t := v.(type) {
	case nil:
		return TypeDecl{Kind: TypeMissing}
	case string:
		return TypeDecl{Kind: TypePrimitive, Primitive: t}
	case []any:
		return TypeDecl{Kind: TypeUnion, Union: t}
	case []string:
		union := make([]any, len(t))
		for i, s := range t {
			union[i] = s
		}
		return TypeDecl{Kind: TypeUnion, Union: union}
	default:
		return TypeDecl{Kind: TypeOther}
	}
}

// TypeOf returns the parsed "type" keyword of the property.
func (p Property) TypeOf() TypeDecl {
	v, ok := p["type"]
	if !ok {
		return TypeDecl{Kind: TypeMissing}
	}
	return ParseTypeDecl(v)
}

// BaseType reduces a type declaration to one concrete primitive: a non-null
// primitive is used as is, a union yields its first non-null primitive, and
// everything else falls back to "string".
func BaseType(t TypeDecl) string {
	switch t.Kind {
	case TypePrimitive:
		if t.Primitive != "null" {
			return t.Primitive
		}
	case TypeUnion:
		for _, member := range t.Union {
			if s, ok := member.(string); ok && s != "null" {
				return s
			}
		}
	}
	return "string"
}

func (p Property) clone() Property {
	if p == nil {
		return Property{}
	}
	return maps.Clone(p)
}
