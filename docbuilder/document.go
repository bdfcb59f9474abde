// Package docbuilder assembles the structured document a Search Engine
// should index for a given resource URI and index definition.
package docbuilder

// Document is the structured result handed to the Search Engine.
type Document = map[string]any

// Denumerate collapses a raw multi-valued field: empty list -> null,
// singleton -> the element, otherwise the list unchanged.
func Denumerate(values []any) any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}
