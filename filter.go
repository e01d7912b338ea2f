package mcpgateway

import "slices"

// ServerFilter selects which servers contribute tools. The zero value is
// NoFilter. An explicit filter built with OnlyServers may be empty, in which
// case it allows nothing.
type ServerFilter struct {
	names []string
	set   bool
}

// NoFilter returns a filter that allows every server.
func NoFilter() ServerFilter {
	return ServerFilter{}
}

// OnlyServers returns an explicit filter allowing only the given names.
func OnlyServers(names ...string) ServerFilter {
	return ServerFilter{names: slices.Clone(names), set: true}
}

// IsSet reports whether the filter restricts servers at all.
func (f ServerFilter) IsSet() bool { return f.set }

// Names returns the allowed names, or nil for NoFilter.
func (f ServerFilter) Names() []string {
	if !f.set {
		return nil
	}
	if f.names == nil {
		return []string{}
	}
	return slices.Clone(f.names)
}

// IsEmpty reports whether the filter is explicit and allows nothing.
func (f ServerFilter) IsEmpty() bool {
	return f.set && len(f.names) == 0
}

// Allows reports whether tools of the named server pass the filter.
func (f ServerFilter) Allows(server string) bool {
	return !f.set || slices.Contains(f.names, server)
}

// Or returns f when it is set and fallback otherwise.
func (f ServerFilter) Or(fallback ServerFilter) ServerFilter {
	if f.set {
		return f
	}
	return fallback
}

// ResolveFilter applies enablement precedence: an explicit per-call filter
// wins over the configured defaults, which win over no filtering.
func ResolveFilter(explicit, defaults ServerFilter) ServerFilter {
	return explicit.Or(defaults)
}
