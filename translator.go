package mcpgateway

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Dialect names the JSON Schema conventions expected by a downstream AI API.
type Dialect string

const (
	// DialectOpenAI marks every property required and encodes optionality as
	// a ["<type>", "null"] union.
	DialectOpenAI Dialect = "openai"
	// DialectGemini keeps the server reported required list and encodes optionality
	// with "nullable": true.
	DialectGemini Dialect = "gemini"
)

// ParseDialect maps a user supplied dialect name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "provider-a", "providera":
		return DialectOpenAI, nil
	case "gemini", "provider-b", "providerb":
		return DialectGemini, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Translate converts server reported properties and required names into the
// given dialect. Property values that are not JSON objects are replaced by
// {"type": "string"}; their names are returned as malformed. The inputs are
// not modified.
func Translate(dialect Dialect, properties map[string]any, required []string) (*ToolSchema, []string, error) {
	var translate func(prop Property, isRequired bool) Property
	switch dialect {
	case DialectOpenAI:
		translate = openAIProperty
	case DialectGemini:
		translate = geminiProperty
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	var malformed []string
	out := &ToolSchema{Properties: make(map[string]Property, len(properties))}
	for name, raw := range properties {
		prop, ok := asProperty(raw)
		if !ok {
			malformed = append(malformed, name)
			prop = Property{"type": "string"}
		}
		out.Properties[name] = translate(prop.clone(), slices.Contains(required, name))
	}
	sort.Strings(malformed)

	if dialect == DialectOpenAI {
		out.Required = make([]string, 0, len(out.Properties))
		for name := range out.Properties {
			out.Required = append(out.Required, name)
		}
		sort.Strings(out.Required)
	} else {
		out.Required = slices.Clone(required)
		if out.Required == nil {
			out.Required = []string{}
		}
	}
	return out, malformed, nil
}

func asProperty(v any) (Property, bool) {
	switch p := v.(type) {
	case map[string]any:
		return Property(p), true
	case Property:
		return p, true
	default:
		return nil, false
	}
}

func openAIProperty(prop Property, isRequired bool) Property {
	base := BaseType(prop.TypeOf())
	delete(prop, "nullable")
	delete(prop, "format")
	if isRequired {
		prop["type"] = base
	} else {
		prop["type"] = []any{base, "null"}
	}
	return prop
}

func geminiProperty(prop Property, isRequired bool) Property {
	t := prop.TypeOf()
	_, hasEnum := prop["enum"]

	if t.Kind == TypePrimitive && t.Primitive == "string" && hasEnum {
		prop["format"] = "enum"
		if isRequired {
			delete(prop, "nullable")
		} else {
			prop["nullable"] = true
		}
		return prop
	}

	prop["type"] = BaseType(t)
	if isRequired {
		delete(prop, "nullable")
	} else {
		prop["nullable"] = true
		delete(prop, "format")
	}
	return prop
}
