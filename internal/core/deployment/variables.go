package deployment

import "regexp"

// =============================================================================
// Variable Expansion
// =============================================================================

// varPlaceholderRegex matches ${VAR} macro references.
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment is the build environment snapshot a deployment request carries.
type Environment map[string]string

// Resolver resolves a variable name to a value. The second return value
// reports whether the name was resolved.
type Resolver func(name string) (string, bool)

// MapResolver returns a Resolver backed by the given map.
func MapResolver(vars map[string]string) Resolver {
	return func(name string) (string, bool) {
		val, ok := vars[name]
		return val, ok
	}
}

// Expand replaces ${VAR} references in value with entries from the
// environment. References the environment does not define are kept as-is.
//
// Examples:
//
//	Environment{"DB_HOST": "localhost"}.Expand("${DB_HOST}")
//	// Returns: "localhost"
//
//	Environment{}.Expand("${MISSING}")
//	// Returns: "${MISSING}"
func (e Environment) Expand(value string) string {
	return ReplaceMacros(value, func(name string) (string, bool) {
		val, ok := e[name]
		return val, ok
	})
}

// ReplaceMacros replaces ${VAR} references in value using the resolver.
// Unresolved references are kept as-is. A nil resolver resolves nothing.
func ReplaceMacros(value string, resolver Resolver) string {
	if resolver == nil {
		return value
	}

	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		name := varPlaceholderRegex.FindStringSubmatch(match)[1]
		if val, ok := resolver(name); ok {
			return val
		}
		return match // Keep original if unresolved
	})
}

// ExpandVariable expands ${VAR} references in value, first against the
// environment's own entries and then with a second resolver pass over
// whatever remains unresolved. References still unresolved after both
// passes pass through verbatim. That leniency is deliberate: configuration
// strings never fail expansion, operators see the raw macro instead.
func ExpandVariable(env Environment, resolver Resolver, value string) string {
	return ReplaceMacros(env.Expand(value), resolver)
}
